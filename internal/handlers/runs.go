package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pdfqa/internal/contextutil"
	"pdfqa/internal/storage"
)

// RunsHandler serves the ingestion run ledger.
type RunsHandler struct {
	runs storage.RunStore
}

// NewRunsHandler creates a new RunsHandler.
func NewRunsHandler(runs storage.RunStore) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// RunDetail is a run with its committed batches.
type RunDetail struct {
	*storage.Run
	Batches []storage.Batch `json:"batches"`
}

// List handles GET /api/runs?limit=N, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(ctx, limit)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// Get handles GET /api/runs/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	id := chi.URLParam(r, "id")

	run, err := h.runs.GetRun(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to get run", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	batches, err := h.runs.ListBatches(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list batches", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}
	if batches == nil {
		batches = []storage.Batch{}
	}
	writeJSON(w, http.StatusOK, RunDetail{Run: run, Batches: batches})
}
