package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/briefs"
	"server/internal/pipeline"
	"server/internal/storage"
)

// App carries the handler dependencies: the brief document store, the
// pipeline, and the blob store for direct asset access.
type App struct {
	Briefs       *briefs.Service
	Store        storage.Store
	Orchestrator *pipeline.Orchestrator
	Dispatcher   *pipeline.Dispatcher
	AutoGenerate bool
	Log          zerolog.Logger
}

func NewApp(briefSvc *briefs.Service, store storage.Store, orch *pipeline.Orchestrator, dispatcher *pipeline.Dispatcher, autoGenerate bool, logger zerolog.Logger) *App {
	return &App{
		Briefs:       briefSvc,
		Store:        store,
		Orchestrator: orch,
		Dispatcher:   dispatcher,
		AutoGenerate: autoGenerate,
		Log:          logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]errorBody{"error": {Code: errCode, Message: message}})
}
