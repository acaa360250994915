package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

// Product image parts in the upload form are named product_{id}; the
// brand logo part is named logo.
const (
	productPartPrefix = "product_"
	logoPartName      = "logo"
	maxUploadBytes    = 64 << 20
)

// BriefsUpload accepts either a bare JSON brief or a multipart form with
// a "brief" JSON part plus optional product and logo image parts. When
// auto generation is enabled and the stored brief still has products
// needing generation, a background pipeline run is queued.
func (a *App) BriefsUpload(w http.ResponseWriter, r *http.Request) {
	brief, productImages, logoData, logoName, ok := a.decodeUpload(w, r)
	if !ok {
		return
	}

	result, err := a.Briefs.Upload(r.Context(), brief, productImages, logoData, logoName)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
			return
		}
		a.Log.Error().Err(err).Msg("brief upload failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store brief")
		return
	}

	queued := false
	if a.AutoGenerate && a.Dispatcher != nil {
		for _, p := range brief.Products {
			if p.Image().NeedsGeneration() {
				queued = a.Dispatcher.Submit(brief.Campaign)
				break
			}
		}
	}

	a.json(w, http.StatusCreated, map[string]any{
		"campaign_id":       result.CampaignID,
		"brief_path":        result.BriefPath,
		"metadata_path":     result.MetadataPath,
		"uploaded_at":       result.UploadedAt,
		"status":            result.Status,
		"generation_queued": queued,
	})
}

func (a *App) decodeUpload(w http.ResponseWriter, r *http.Request) (*domain.CampaignBrief, map[string][]byte, []byte, string, bool) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
			return nil, nil, nil, "", false
		}

		briefJSON := r.FormValue("brief")
		if briefJSON == "" {
			file, _, err := r.FormFile("brief")
			if err != nil {
				a.error(w, http.StatusBadRequest, "bad_request", "brief part is required")
				return nil, nil, nil, "", false
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				a.error(w, http.StatusBadRequest, "bad_request", "could not read brief part")
				return nil, nil, nil, "", false
			}
			briefJSON = string(data)
		}

		var brief domain.CampaignBrief
		if err := json.Unmarshal([]byte(briefJSON), &brief); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "brief part is not valid JSON")
			return nil, nil, nil, "", false
		}

		productImages := map[string][]byte{}
		var logoData []byte
		var logoName string
		if r.MultipartForm != nil {
			for field, files := range r.MultipartForm.File {
				if len(files) == 0 {
					continue
				}
				f, err := files[0].Open()
				if err != nil {
					continue
				}
				data, err := io.ReadAll(f)
				f.Close()
				if err != nil {
					continue
				}
				switch {
				case field == logoPartName:
					logoData = data
					logoName = files[0].Filename
				case strings.HasPrefix(field, productPartPrefix):
					productImages[strings.TrimPrefix(field, productPartPrefix)] = data
				}
			}
		}
		return &brief, productImages, logoData, logoName, true
	}

	var brief domain.CampaignBrief
	if err := json.NewDecoder(r.Body).Decode(&brief); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return nil, nil, nil, "", false
	}
	return &brief, nil, nil, "", true
}

func (a *App) BriefsList(w http.ResponseWriter, r *http.Request) {
	items, err := a.Briefs.List(r.Context())
	if err != nil {
		a.Log.Error().Err(err).Msg("brief list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list briefs")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"briefs": items, "count": len(items)})
}

func (a *App) BriefGet(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")

	brief, err := a.Briefs.Get(r.Context(), campaignID)
	if err != nil {
		a.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("brief get failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load brief")
		return
	}
	if brief == nil {
		a.error(w, http.StatusNotFound, "not_found", "campaign not found")
		return
	}

	metadata, err := a.Briefs.GetMetadata(r.Context(), campaignID)
	if err != nil {
		a.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("brief metadata get failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load metadata")
		return
	}

	a.json(w, http.StatusOK, map[string]any{"brief": brief, "metadata": metadata})
}

func (a *App) BriefStatus(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")

	metadata, err := a.Briefs.GetMetadata(r.Context(), campaignID)
	if err != nil {
		a.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("brief status failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load metadata")
		return
	}
	if metadata == nil {
		a.error(w, http.StatusNotFound, "not_found", "campaign not found")
		return
	}
	a.json(w, http.StatusOK, metadata)
}

// BriefDelete removes the whole campaign subtree. Deleting an unknown
// campaign is a no-op and still returns 204.
func (a *App) BriefDelete(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")

	if err := a.Briefs.Delete(r.Context(), campaignID); err != nil {
		a.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("brief delete failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete campaign")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
