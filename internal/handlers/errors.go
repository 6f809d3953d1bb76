package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"pdfqa/internal/apperr"
	"pdfqa/internal/rag"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Stage and Trace are set when a query failed part way.
	Stage string    `json:"stage,omitempty"`
	Trace rag.Trace `json:"trace,omitempty"`
}

// statusForError maps error kinds to HTTP status codes.
func statusForError(err error) int {
	var validationErr *apperr.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case apperr.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperr.ErrIndexRead):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrModelCall), errors.Is(err, apperr.ErrIndexWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}
