package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"server/internal/briefs"
	"server/internal/domain"
	"server/pkg/zip"
)

// AssetLink mints a temporary download URL for one stored object inside
// the campaign folder. The path query parameter is relative to the
// campaign root, e.g. products/mug/1-1/mug.png.
func (a *App) AssetLink(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")

	rel := strings.Trim(r.URL.Query().Get("path"), "/")
	if rel == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "path query parameter is required")
		return
	}
	if strings.Contains(rel, "..") {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid path")
		return
	}

	url, err := a.Store.TemporaryLink(r.Context(), briefs.CampaignFolder(campaignID)+"/"+rel)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "asset not found")
			return
		}
		a.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("temporary link failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to mint link")
		return
	}

	a.json(w, http.StatusOK, map[string]string{"url": url})
}

// AssetsZip streams every generated creative of a campaign as one zip
// archive, with entries named {productId}/{aspectLabel}/{file}.
func (a *App) AssetsZip(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")
	ctx := r.Context()

	brief, err := a.Briefs.Get(ctx, campaignID)
	if err != nil {
		a.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("zip: brief load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load brief")
		return
	}
	if brief == nil {
		a.error(w, http.StatusNotFound, "not_found", "campaign not found")
		return
	}

	productsFolder := briefs.CampaignFolder(campaignID) + "/products"
	var entries []zip.Entry

	productFolders, err := a.Store.ListPaths(ctx, productsFolder)
	if err != nil {
		a.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("zip: product listing failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enumerate assets")
		return
	}
	for _, productFolder := range productFolders {
		aspectFolders, err := a.Store.ListPaths(ctx, productFolder)
		if err != nil {
			continue
		}
		for _, aspectFolder := range aspectFolders {
			files, err := a.Store.ListPaths(ctx, aspectFolder)
			if err != nil {
				continue
			}
			for _, file := range files {
				data, err := a.Store.DownloadBytes(ctx, file)
				if err != nil {
					a.Log.Warn().Err(err).Str("path", file).Msg("zip: skipping unreadable asset")
					continue
				}
				entries = append(entries, zip.Entry{
					Name: strings.TrimPrefix(file, productsFolder+"/"),
					Data: data,
				})
			}
		}
	}

	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no generated assets for campaign")
		return
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("zip: archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", campaignID+"-assets.zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
