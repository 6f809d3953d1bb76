package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"pdfqa/internal/contextutil"
	"pdfqa/internal/vectorstore"
)

// IndexInfo reports the state of the index collection.
type IndexInfo interface {
	Info(ctx context.Context) (*vectorstore.CollectionInfo, error)
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	index              IndexInfo
	collectionName     string
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(index IndexInfo, collectionName string) *HealthHandler {
	return &HealthHandler{
		index:              index,
		collectionName:     collectionName,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// Number of chunks in the collection, when it exists
	Chunks int `json:"chunks"`

	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// Returns 200 OK if the index collection is reachable and exists, 503 otherwise.
// A collection that has never been ingested into is reported as an issue.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string

	info := h.checkIndex(checkCtx, logger)
	switch {
	case info == nil:
		checks["index"] = "error"
		issues = append(issues, "index_unavailable")
	case !info.Exists:
		checks["index"] = "missing"
		issues = append(issues, "collection_missing")
	default:
		checks["index"] = "ok"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	}
	if info != nil {
		response.Chunks = info.PointsCount
	}

	writeJSON(w, httpStatus, response)
}

// checkIndex returns nil when the index cannot be reached.
func (h *HealthHandler) checkIndex(ctx context.Context, logger *slog.Logger) *vectorstore.CollectionInfo {
	info, err := h.index.Info(ctx)
	if err != nil {
		logger.WarnContext(ctx, "index health check failed", "error", err, "collection", h.collectionName)
		return nil
	}
	if !info.Exists {
		logger.WarnContext(ctx, "index collection does not exist", "collection", h.collectionName)
	}
	return info
}
