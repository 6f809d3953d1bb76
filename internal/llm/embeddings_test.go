package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"pdfqa/internal/apperr"
)

func embeddingServer(t *testing.T, build func(inputs []string) []openai.Embedding) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("expected /v1/embeddings, got %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.EmbeddingResponse{
			Object: "list",
			Data:   build(req.Input),
		})
	}))
}

func TestEmbeddingsClient_EmbedTexts(t *testing.T) {
	// Return data out of order to check that vectors follow input order.
	server := embeddingServer(t, func(inputs []string) []openai.Embedding {
		data := make([]openai.Embedding, len(inputs))
		for i := range inputs {
			j := len(inputs) - 1 - i
			data[i] = openai.Embedding{Object: "embedding", Index: j, Embedding: []float32{float32(j), 1, 0}}
		}
		return data
	})
	defer server.Close()

	client := NewEmbeddingsClient(testOptions(server.URL), 3)
	vecs, err := client.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	want := [][]float32{{0, 1, 0}, {1, 1, 0}, {2, 1, 0}}
	if !reflect.DeepEqual(vecs, want) {
		t.Errorf("EmbedTexts() = %v, want %v", vecs, want)
	}
}

func TestEmbeddingsClient_EmbedTexts_Errors(t *testing.T) {
	tests := []struct {
		name         string
		inputs       []string
		expectedSize int
		build        func(inputs []string) []openai.Embedding
	}{
		{
			name:   "empty input",
			inputs: nil,
			build:  func([]string) []openai.Embedding { return nil },
		},
		{
			name:   "count mismatch",
			inputs: []string{"a", "b"},
			build: func([]string) []openai.Embedding {
				return []openai.Embedding{{Index: 0, Embedding: []float32{1}}}
			},
		},
		{
			name:         "size mismatch",
			inputs:       []string{"a"},
			expectedSize: 4,
			build: func([]string) []openai.Embedding {
				return []openai.Embedding{{Index: 0, Embedding: []float32{1, 2}}}
			},
		},
		{
			name:   "duplicate index",
			inputs: []string{"a", "b"},
			build: func([]string) []openai.Embedding {
				return []openai.Embedding{{Index: 0, Embedding: []float32{1}}, {Index: 0, Embedding: []float32{2}}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := embeddingServer(t, tt.build)
			defer server.Close()

			_, err := NewEmbeddingsClient(testOptions(server.URL), tt.expectedSize).
				EmbedTexts(context.Background(), tt.inputs)
			if !errors.Is(err, apperr.ErrModelCall) {
				t.Errorf("EmbedTexts() error = %v, want ErrModelCall", err)
			}
		})
	}
}
