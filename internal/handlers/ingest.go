package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pdfqa/internal/apperr"
	"pdfqa/internal/contextutil"
	"pdfqa/internal/indexer"
)

// Ingester runs an ingestion pass over a directory.
type Ingester interface {
	Ingest(ctx context.Context, dir string, resetFirst bool) (*indexer.Report, error)
}

// IngestHandler starts ingestion runs in the background. Only one run is active at a time.
type IngestHandler struct {
	ingester   Ingester
	defaultDir string

	busy atomic.Bool
	wg   sync.WaitGroup
}

// NewIngestHandler creates a new IngestHandler. Requests without a directory ingest defaultDir.
func NewIngestHandler(ingester Ingester, defaultDir string) *IngestHandler {
	return &IngestHandler{ingester: ingester, defaultDir: defaultDir}
}

// IngestRequest is the request payload for POST /api/ingest. The body is optional.
type IngestRequest struct {
	Dir  string `json:"dir"`
	Keep bool   `json:"keep"`
}

// IngestAccepted is returned when a run has been started.
type IngestAccepted struct {
	Message string `json:"message"`
	Dir     string `json:"dir"`
	Reset   bool   `json:"reset"`
}

// ServeHTTP starts an ingestion run and returns 202 Accepted without waiting for it.
// Progress is recorded in the run ledger. A second request while a run is active gets 409.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dir, err := h.resolveDir(req.Dir)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	if !h.busy.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "Ingestion already running")
		return
	}

	reset := !req.Keep
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.busy.Store(false)

		runCtx := context.WithoutCancel(ctx)
		if _, err := h.ingester.Ingest(runCtx, dir, reset); err != nil {
			logger.ErrorContext(runCtx, "background ingestion failed", "dir", dir, "error", err)
			return
		}
		logger.InfoContext(runCtx, "background ingestion completed", "dir", dir)
	}()

	writeJSON(w, http.StatusAccepted, IngestAccepted{
		Message: "Ingestion started",
		Dir:     dir,
		Reset:   reset,
	})
}

// Wait blocks until background runs have finished.
func (h *IngestHandler) Wait() {
	h.wg.Wait()
}

// WaitTimeout waits like Wait for at most d and reports whether background runs finished.
// A zero or negative d does not wait.
func (h *IngestHandler) WaitTimeout(d time.Duration) bool {
	if d <= 0 {
		return !h.busy.Load()
	}
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// resolveDir keeps requested directories relative to the working directory.
func (h *IngestHandler) resolveDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return h.defaultDir, nil
	}
	if filepath.IsAbs(dir) {
		return "", &apperr.ValidationError{Field: "dir", Message: "must be a relative path"}
	}
	clean := filepath.Clean(dir)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", &apperr.ValidationError{Field: "dir", Message: "must not leave the working directory"}
	}
	return clean, nil
}
