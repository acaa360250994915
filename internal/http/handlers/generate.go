package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

// Generate runs the pipeline for a campaign. With ?async=true the run is
// queued on the dispatcher and 202 is returned immediately; otherwise the
// handler blocks until the report is ready.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")

	if r.URL.Query().Get("async") == "true" {
		if a.Dispatcher == nil || !a.Dispatcher.Submit(campaignID) {
			a.error(w, http.StatusServiceUnavailable, "queue_full", "generation queue is full, retry later")
			return
		}
		a.json(w, http.StatusAccepted, map[string]string{
			"campaign_id": campaignID,
			"status":      string(domain.BriefStatusProcessing),
		})
		return
	}

	report, err := a.Orchestrator.GenerateCampaign(r.Context(), campaignID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "campaign not found")
		case errors.Is(err, domain.ErrConfiguration):
			a.error(w, http.StatusServiceUnavailable, "provider_unconfigured", err.Error())
		default:
			a.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("generation failed")
			a.error(w, http.StatusBadGateway, "generation_failed", err.Error())
		}
		return
	}

	a.json(w, http.StatusOK, report)
}
