package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

func NewRouter(app *handlers.App, corsOrigins []string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS(corsOrigins),
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/briefs", func(r chi.Router) {
		r.Post("/", app.BriefsUpload)
		r.Get("/", app.BriefsList)
		r.Route("/{campaign_id}", func(r chi.Router) {
			r.Get("/", app.BriefGet)
			r.Delete("/", app.BriefDelete)
			r.Get("/status", app.BriefStatus)
			r.Post("/generate", app.Generate)
			r.Get("/assets/link", app.AssetLink)
			r.Get("/assets.zip", app.AssetsZip)
		})
	})

	return r
}
