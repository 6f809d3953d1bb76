package rag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"pdfqa/internal/apperr"
	"pdfqa/internal/document"
	index_mocks "pdfqa/internal/index/mocks"
	"pdfqa/internal/rag/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func match(text string, score float32) document.Match {
	return document.Match{Chunk: document.Chunk{Text: text}, Score: score}
}

func TestRetrievalAgent_Retrieve(t *testing.T) {
	tests := []struct {
		name    string
		k       int
		wantK   int
		matches []document.Match
		want    string
	}{
		{
			name:    "joins in order",
			k:       4,
			wantK:   4,
			matches: []document.Match{match("first", 0.9), match("second", 0.5)},
			want:    "first\n\nsecond",
		},
		{
			name:    "empty index",
			k:       4,
			wantK:   4,
			matches: nil,
			want:    "",
		},
		{
			name:    "default k",
			k:       0,
			wantK:   DefaultK,
			matches: []document.Match{match("only", 0.1)},
			want:    "only",
		},
		{
			name:    "truncates to k",
			k:       1,
			wantK:   1,
			matches: []document.Match{match("a", 0.9), match("b", 0.8)},
			want:    "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			idx := index_mocks.NewMockEmbeddingIndex(ctrl)
			idx.EXPECT().SimilaritySearch(gomock.Any(), "q", tt.wantK).Return(tt.matches, nil)

			got, _, err := NewRetrievalAgent(idx, tt.k).Retrieve(context.Background(), "q")
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Retrieve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetrievalAgent_Retrieve_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	idx := index_mocks.NewMockEmbeddingIndex(ctrl)
	idx.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	_, _, err := NewRetrievalAgent(idx, 4).Retrieve(context.Background(), "q")
	if !errors.Is(err, apperr.ErrIndexRead) {
		t.Errorf("Retrieve() error = %v, want ErrIndexRead", err)
	}
}

func TestDraftingAgent_Draft(t *testing.T) {
	t.Run("empty context skips the model", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		model := mocks.NewMockCompleter(ctrl) // no expectations: any call fails

		got, err := NewDraftingAgent(model).Draft(context.Background(), "What color is the sky?", "")
		if err != nil {
			t.Fatalf("Draft() error = %v", err)
		}
		if got != NoContextAnswer {
			t.Errorf("Draft() = %q, want %q", got, NoContextAnswer)
		}
	})

	t.Run("grounded prompt", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		model := mocks.NewMockCompleter(ctrl)
		want := "You are an AI assistant. Use the context below to answer the question.\n\n" +
			"Context:\nThe sky is blue.\n\nQuestion: What color is the sky?\nAnswer:"
		model.EXPECT().Complete(gomock.Any(), want).Return("  The sky is blue.\n", nil)

		got, err := NewDraftingAgent(model).Draft(context.Background(), "What color is the sky?", "The sky is blue.")
		if err != nil {
			t.Fatalf("Draft() error = %v", err)
		}
		if got != "The sky is blue." {
			t.Errorf("Draft() = %q", got)
		}
	})

	t.Run("model failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		model := mocks.NewMockCompleter(ctrl)
		model.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", context.DeadlineExceeded)

		_, err := NewDraftingAgent(model).Draft(context.Background(), "q", "ctx")
		if !errors.Is(err, apperr.ErrModelCall) || !apperr.IsTimeout(err) {
			t.Errorf("Draft() error = %v, want ErrModelCall timeout", err)
		}
	})
}

func TestVerificationAgent_Verify(t *testing.T) {
	const candidate = "The sky is blue."

	tests := []struct {
		name    string
		verdict string
		want    string
	}{
		{name: "confirmed", verdict: "The sky is blue.", want: candidate},
		{name: "confirmed without period", verdict: "The sky is blue", want: candidate},
		{name: "confirmed in quotes", verdict: "\"The sky is blue.\"", want: candidate},
		{name: "rejected", verdict: "I don't know", want: UnknownAnswer},
		{name: "rejected with punctuation", verdict: "'I don't know.'", want: UnknownAnswer},
		{name: "rewritten answer", verdict: "The sky is green.", want: UnknownAnswer},
		{name: "empty verdict", verdict: "", want: UnknownAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			model := mocks.NewMockCompleter(ctrl)
			model.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, prompt string) (string, error) {
				if !strings.Contains(prompt, "Proposed Answer: "+candidate+"\nVerified Answer:") {
					t.Errorf("prompt missing candidate: %q", prompt)
				}
				if !strings.HasPrefix(prompt, "Verify that the proposed answer is fully supported by the context.") {
					t.Errorf("unexpected prompt: %q", prompt)
				}
				return tt.verdict, nil
			})

			got, err := NewVerificationAgent(model).Verify(context.Background(), "What color is the sky?", "The sky is blue.", candidate)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Verify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVerificationAgent_Verify_NoContextSentinel(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)

	got, err := NewVerificationAgent(model).Verify(context.Background(), "q", "", NoContextAnswer)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != NoContextAnswer {
		t.Errorf("Verify() = %q, want %q", got, NoContextAnswer)
	}
}

func TestVerificationAgent_Verify_EmptyCandidate(t *testing.T) {
	for _, candidate := range []string{"", "  \n\t"} {
		ctrl := gomock.NewController(t)
		model := mocks.NewMockCompleter(ctrl) // no expectations: any call fails

		got, err := NewVerificationAgent(model).Verify(context.Background(), "q", "The sky is blue.", candidate)
		if err != nil {
			t.Fatalf("Verify(%q) error = %v", candidate, err)
		}
		if got != UnknownAnswer {
			t.Errorf("Verify(%q) = %q, want %q", candidate, got, UnknownAnswer)
		}
	}
}

func TestPipeline_Ask_EmptyDraft(t *testing.T) {
	ctrl := gomock.NewController(t)
	idx := index_mocks.NewMockEmbeddingIndex(ctrl)
	model := mocks.NewMockCompleter(ctrl)

	idx.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any(), gomock.Any()).Return([]document.Match{match("The sky is blue.", 0.9)}, nil)
	model.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("   \n", nil).Times(1)

	res, err := NewPipeline(idx, model, 4, nil).Ask(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Answer != UnknownAnswer {
		t.Errorf("Answer = %q, want %q", res.Answer, UnknownAnswer)
	}
}

func TestVerificationAgent_Verify_ModelFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)
	model.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", errors.New("502 bad gateway"))

	_, err := NewVerificationAgent(model).Verify(context.Background(), "q", "ctx", "answer")
	if !errors.Is(err, apperr.ErrModelCall) {
		t.Errorf("Verify() error = %v, want ErrModelCall", err)
	}
}
