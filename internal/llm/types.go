package llm

import "time"

// Options holds connection and call policy for the OpenAI-compatible API.
type Options struct {
	// APIKey is sent as a bearer token.
	APIKey string

	// BaseURL overrides the API base, e.g. "http://localhost:8080/v1". Empty uses api.openai.com.
	BaseURL string

	// Model is the chat or embedding model name.
	Model string

	// Timeout bounds each attempt. Zero disables the per-call timeout.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries int

	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
}

const defaultBackoff = 500 * time.Millisecond
