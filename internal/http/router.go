package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pdfqa/internal/handlers"
	"pdfqa/internal/storage"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Asker  handlers.Asker
	Ingest *handlers.IngestHandler
	Runs   storage.RunStore
	Index  handlers.IndexInfo

	CollectionName string
	IndexHTML      string // served at "/" when set
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(CORS)

	askHandler := handlers.NewAskHandler(deps.Asker)
	healthHandler := handlers.NewHealthHandler(deps.Index, deps.CollectionName)
	runsHandler := handlers.NewRunsHandler(deps.Runs)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
		if deps.Ingest != nil {
			r.Method(http.MethodPost, "/ingest", deps.Ingest)
		}
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{id}", runsHandler.Get)
	})

	if deps.IndexHTML != "" {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(deps.IndexHTML))
		})
	}

	return r
}
