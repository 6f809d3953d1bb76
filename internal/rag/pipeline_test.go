package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"go.uber.org/mock/gomock"

	"pdfqa/internal/apperr"
	"pdfqa/internal/document"
	index_mocks "pdfqa/internal/index/mocks"
	"pdfqa/internal/indexer"
	"pdfqa/internal/loader"
	"pdfqa/internal/rag/mocks"
)

func TestPipeline_Ask(t *testing.T) {
	ctrl := gomock.NewController(t)
	idx := index_mocks.NewMockEmbeddingIndex(ctrl)
	model := mocks.NewMockCompleter(ctrl)

	idx.EXPECT().SimilaritySearch(gomock.Any(), "What color is the sky?", 4).
		Return([]document.Match{match("The sky is blue.", 0.9), match("Grass is green.", 0.4)}, nil)
	gomock.InOrder(
		model.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("The sky is blue.", nil),
		model.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("The sky is blue.", nil),
	)

	res, err := NewPipeline(idx, model, 4, nil).Ask(context.Background(), "  What color is the sky?  ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Question != "What color is the sky?" || res.Answer != "The sky is blue." {
		t.Errorf("Ask() = %+v", res)
	}
	if len(res.Matches) != 2 {
		t.Errorf("Matches = %d, want 2", len(res.Matches))
	}

	wantStages := []Stage{StageRetrieving, StageDrafting, StageVerifying}
	if len(res.Trace) != len(wantStages) {
		t.Fatalf("trace has %d records, want %d", len(res.Trace), len(wantStages))
	}
	for i, s := range wantStages {
		if res.Trace[i].Stage != s {
			t.Errorf("trace[%d].Stage = %s, want %s", i, res.Trace[i].Stage, s)
		}
	}
	if res.Trace[0].Output != "The sky is blue.\n\nGrass is green." {
		t.Errorf("retrieval output = %q", res.Trace[0].Output)
	}

	want := "[RETRIEVAL AGENT]\nThe sky is blue.\n\nGrass is green.\n\n" +
		"[ANSWER AGENT]\nThe sky is blue.\n\n" +
		"[VERIFIER AGENT]\nThe sky is blue."
	if got := res.Trace.String(); got != want {
		t.Errorf("Trace.String() = %q, want %q", got, want)
	}
}

func TestPipeline_Ask_EmptyIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	idx := index_mocks.NewMockEmbeddingIndex(ctrl)
	model := mocks.NewMockCompleter(ctrl) // never called

	idx.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	res, err := NewPipeline(idx, model, 4, nil).Ask(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Answer != NoContextAnswer {
		t.Errorf("Answer = %q, want %q", res.Answer, NoContextAnswer)
	}
	if res.Trace[0].Output != "[no relevant context retrieved]" {
		t.Errorf("retrieval trace = %q", res.Trace[0].Output)
	}
	if res.Trace[1].Output != NoContextAnswer || res.Trace[2].Output != NoContextAnswer {
		t.Errorf("trace = %+v", res.Trace)
	}
}

func TestPipeline_Ask_Unsupported(t *testing.T) {
	ctrl := gomock.NewController(t)
	idx := index_mocks.NewMockEmbeddingIndex(ctrl)
	model := mocks.NewMockCompleter(ctrl)

	idx.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]document.Match{match("Grass is green.", 0.3)}, nil)
	gomock.InOrder(
		model.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("The sky is purple.", nil),
		model.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("I don't know", nil),
	)

	res, err := NewPipeline(idx, model, 4, nil).Ask(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Answer != UnknownAnswer {
		t.Errorf("Answer = %q, want %q", res.Answer, UnknownAnswer)
	}
	if res.Trace[1].Output != "The sky is purple." {
		t.Errorf("draft trace = %q", res.Trace[1].Output)
	}
}

func TestPipeline_Ask_StageFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(idx *index_mocks.MockEmbeddingIndex, model *mocks.MockCompleter)
		wantStage Stage
		wantTrace int
		wantKind  error
	}{
		{
			name: "retrieval",
			setup: func(idx *index_mocks.MockEmbeddingIndex, model *mocks.MockCompleter) {
				idx.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, apperr.New(apperr.ErrIndexRead, "unreachable"))
			},
			wantStage: StageRetrieving,
			wantTrace: 0,
			wantKind:  apperr.ErrIndexRead,
		},
		{
			name: "drafting",
			setup: func(idx *index_mocks.MockEmbeddingIndex, model *mocks.MockCompleter) {
				idx.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any(), gomock.Any()).
					Return([]document.Match{match("ctx", 1)}, nil)
				model.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", errors.New("rate limited"))
			},
			wantStage: StageDrafting,
			wantTrace: 1,
			wantKind:  apperr.ErrModelCall,
		},
		{
			name: "verification",
			setup: func(idx *index_mocks.MockEmbeddingIndex, model *mocks.MockCompleter) {
				idx.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any(), gomock.Any()).
					Return([]document.Match{match("ctx", 1)}, nil)
				gomock.InOrder(
					model.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("draft", nil),
					model.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", errors.New("rate limited")),
				)
			},
			wantStage: StageVerifying,
			wantTrace: 2,
			wantKind:  apperr.ErrModelCall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			idx := index_mocks.NewMockEmbeddingIndex(ctrl)
			model := mocks.NewMockCompleter(ctrl)
			tt.setup(idx, model)

			res, err := NewPipeline(idx, model, 4, nil).Ask(context.Background(), "q")
			if res != nil {
				t.Errorf("Ask() returned a result on failure: %+v", res)
			}

			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("Ask() error = %v, want *StageError", err)
			}
			if stageErr.Stage != tt.wantStage {
				t.Errorf("Stage = %s, want %s", stageErr.Stage, tt.wantStage)
			}
			if len(stageErr.Trace) != tt.wantTrace {
				t.Errorf("partial trace has %d records, want %d", len(stageErr.Trace), tt.wantTrace)
			}
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("error kind = %v, want %v", apperr.KindOf(err), tt.wantKind)
			}
		})
	}
}

func TestPipeline_Ask_EmptyQuestion(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewPipeline(index_mocks.NewMockEmbeddingIndex(ctrl), mocks.NewMockCompleter(ctrl), 4, nil)

	_, err := p.Ask(context.Background(), "   ")
	var validationErr *apperr.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "question" {
		t.Errorf("Ask() error = %v, want ValidationError", err)
	}
}

// memoryIndex ranks chunks by the number of words they share with the query.
type memoryIndex struct {
	mu     sync.Mutex
	chunks []document.Chunk
}

func (m *memoryIndex) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	return nil
}

func (m *memoryIndex) Upsert(_ context.Context, batch []document.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, batch...)
	return nil
}

func (m *memoryIndex) SimilaritySearch(_ context.Context, query string, k int) ([]document.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queryWords := words(query)
	var matches []document.Match
	for _, c := range m.chunks {
		score := 0
		for w := range words(c.Text) {
			if _, ok := queryWords[w]; ok {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, document.Match{Chunk: c, Score: float32(score)})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func words(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,?!")
		if len(w) > 2 && w != "the" && w != "what" {
			set[w] = struct{}{}
		}
	}
	return set
}

// groundedModel answers from the first context sentence and confirms answers found in the context.
type groundedModel struct{}

func (groundedModel) Complete(_ context.Context, prompt string) (string, error) {
	ctxText := between(prompt, "Context:\n", "\n\nQuestion:")
	if strings.HasPrefix(prompt, "You are an AI assistant.") {
		first, _, _ := strings.Cut(ctxText, ". ")
		return strings.TrimSuffix(first, ".") + ".", nil
	}
	answer := between(prompt, "Proposed Answer: ", "\nVerified Answer:")
	if strings.Contains(ctxText, answer) {
		return answer, nil
	}
	return "I don't know", nil
}

func between(s, start, end string) string {
	_, rest, _ := strings.Cut(s, start)
	out, _, _ := strings.Cut(rest, end)
	return out
}

func TestIngestAndAsk_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sky.pdf"), []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}

	pdf := loader.ExtractorFunc(func(context.Context, string) (loader.Extracted, error) {
		return loader.Extracted{Text: "The sky is blue. Grass is green.", Metadata: map[string]any{document.MetaPages: 1}}, nil
	})
	registry, err := loader.NewRegistry([]string{".pdf"}, loader.DefaultExtractors(pdf))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	splitter, err := indexer.NewSplitter(1000, 0)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}

	idx := &memoryIndex{}
	ingest := indexer.NewPipeline(loader.NewDirectoryLoader(registry, nil), idx, splitter, nil)
	report, err := ingest.Ingest(context.Background(), dir, true)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.Committed != 1 || idx.chunks[0].Text != "The sky is blue. Grass is green." {
		t.Fatalf("committed = %d, chunks = %+v", report.Committed, idx.chunks)
	}

	res, err := NewPipeline(idx, groundedModel{}, DefaultK, nil).Ask(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Trace[0].Output != "The sky is blue. Grass is green." {
		t.Errorf("retrieved context = %q", res.Trace[0].Output)
	}
	if !strings.Contains(res.Trace[1].Output, "blue") {
		t.Errorf("draft = %q, want mention of blue", res.Trace[1].Output)
	}
	if res.Answer != res.Trace[1].Output {
		t.Errorf("verified answer %q differs from supported draft %q", res.Answer, res.Trace[1].Output)
	}
}

func TestAsk_EndToEnd_EmptyIndex(t *testing.T) {
	res, err := NewPipeline(&memoryIndex{}, groundedModel{}, DefaultK, nil).Ask(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Answer != NoContextAnswer {
		t.Errorf("Answer = %q, want %q", res.Answer, NoContextAnswer)
	}
}
