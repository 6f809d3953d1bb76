package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"pdfqa/internal/contextutil"
	"pdfqa/internal/rag"
)

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string) (*rag.Result, error)
}

// AskHandler handles HTTP requests for questions.
type AskHandler struct {
	asker Asker
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(asker Asker) *AskHandler {
	return &AskHandler{asker: asker}
}

// AskRequest is the request payload for POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the verified answer with the trace of every agent.
type AskResponse struct {
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Trace    rag.Trace    `json:"trace"`
	Sources  []SourceInfo `json:"sources"`
}

// SourceInfo identifies a retrieved chunk.
type SourceInfo struct {
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
}

// ServeHTTP runs the query pipeline. A failed stage is reported with its partial trace
// and never with an answer.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.asker.Ask(ctx, req.Question)
	if err != nil {
		logger.ErrorContext(ctx, "query failed", "error", err)
		resp := ErrorResponse{Error: err.Error()}
		var stageErr *rag.StageError
		if errors.As(err, &stageErr) {
			resp.Stage = string(stageErr.Stage)
			resp.Trace = stageErr.Trace
		}
		writeJSON(w, statusForError(err), resp)
		return
	}

	sources := make([]SourceInfo, 0, len(res.Matches))
	for _, m := range res.Matches {
		sources = append(sources, SourceInfo{
			Source:     m.Chunk.Source(),
			ChunkIndex: m.Chunk.Index(),
			Score:      m.Score,
		})
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Question: res.Question,
		Answer:   res.Answer,
		Trace:    res.Trace,
		Sources:  sources,
	})
}
