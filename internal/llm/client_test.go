package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"pdfqa/internal/apperr"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testOptions(serverURL string) Options {
	return Options{
		APIKey:     "test-key",
		BaseURL:    serverURL + "/v1",
		Model:      "test-model",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	}
}

func writeChatResponse(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
		ID:     "test-id",
		Object: "chat.completion",
		Choices: []openai.ChatCompletionChoice{
			{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			},
		},
	})
}

func writeAPIError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
}

func TestClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if body["model"] != "test-model" {
			t.Errorf("model = %v", body["model"])
		}
		if temp, ok := body["temperature"].(float64); !ok || temp > 1e-6 {
			t.Errorf("temperature = %v, want effectively zero and present", body["temperature"])
		}
		msgs, _ := body["messages"].([]any)
		if len(msgs) != 1 {
			t.Fatalf("expected a single message, got %d", len(msgs))
		}
		msg := msgs[0].(map[string]any)
		if msg["role"] != "user" || msg["content"] != "What color is the sky?" {
			t.Errorf("unexpected message %v", msg)
		}

		writeChatResponse(w, "  The sky is blue.\n")
	}))
	defer server.Close()

	client := NewClient(testOptions(server.URL))
	reply, err := client.Complete(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "The sky is blue." {
		t.Errorf("Complete() = %q, want trimmed reply", reply)
	}
	if client.Model() != "test-model" {
		t.Errorf("Model() = %q", client.Model())
	}
}

func TestClient_Complete_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeAPIError(w, http.StatusServiceUnavailable)
			return
		}
		writeChatResponse(w, "ok")
	}))
	defer server.Close()

	reply, err := NewClient(testOptions(server.URL)).Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "ok" {
		t.Errorf("Complete() = %q", reply)
	}
	if calls.Load() != 3 {
		t.Errorf("server called %d times, want 3", calls.Load())
	}
}

func TestClient_Complete_Errors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		opts        func(Options) Options
		wantCalls   int32
		wantTimeout bool
	}{
		{
			name:      "client error is not retried",
			handler:   func(w http.ResponseWriter, r *http.Request) { writeAPIError(w, http.StatusBadRequest) },
			wantCalls: 1,
		},
		{
			name:      "server error exhausts retries",
			handler:   func(w http.ResponseWriter, r *http.Request) { writeAPIError(w, http.StatusInternalServerError) },
			wantCalls: 3,
		},
		{
			name:      "no choices",
			handler:   func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"choices":[]}`)) },
			wantCalls: 1,
		},
		{
			name: "per-call timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
			opts: func(o Options) Options {
				o.Timeout = 20 * time.Millisecond
				o.MaxRetries = 0
				return o
			},
			wantCalls:   1,
			wantTimeout: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			opts := testOptions(server.URL)
			if tt.opts != nil {
				opts = tt.opts(opts)
			}

			_, err := NewClient(opts).Complete(context.Background(), "hi")
			if err == nil {
				t.Fatal("Complete() expected error")
			}
			if !errors.Is(err, apperr.ErrModelCall) {
				t.Errorf("error = %v, want ErrModelCall", err)
			}
			if got := errors.Is(err, apperr.ErrTimeout); got != tt.wantTimeout {
				t.Errorf("timeout = %v, want %v (err %v)", got, tt.wantTimeout, err)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("server called %d times, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limited", err: &openai.APIError{HTTPStatusCode: 429}, want: true},
		{name: "server error", err: &openai.APIError{HTTPStatusCode: 502}, want: true},
		{name: "bad request", err: &openai.APIError{HTTPStatusCode: 400}, want: false},
		{name: "unauthorized request error", err: &openai.RequestError{HTTPStatusCode: 401, Err: errors.New("x")}, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCall_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := call(ctx, Options{MaxRetries: 5, Backoff: time.Millisecond}, "test", func(ctx context.Context) error {
		calls++
		return ctx.Err()
	})
	if !errors.Is(err, apperr.ErrModelCall) || !errors.Is(err, context.Canceled) {
		t.Errorf("call() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
	if !strings.Contains(err.Error(), "test") {
		t.Errorf("error should name the call: %v", err)
	}
}
