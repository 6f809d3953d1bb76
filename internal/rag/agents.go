package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_completer.go -package=mocks pdfqa/internal/rag Completer

import (
	"context"
	"fmt"
	"strings"

	"pdfqa/internal/apperr"
	"pdfqa/internal/contextutil"
	"pdfqa/internal/document"
	"pdfqa/internal/index"
)

const (
	// NoContextAnswer is the drafted answer when retrieval found nothing.
	NoContextAnswer = "I don't have any relevant context to answer that question."
	// UnknownAnswer is the verified answer when the draft is not supported by the context.
	UnknownAnswer = "I don't know"

	// DefaultK is the number of chunks retrieved per question.
	DefaultK = 4

	contextSeparator = "\n\n"
)

// Completer is the generative model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RetrievalAgent turns a question into context text from the index.
type RetrievalAgent struct {
	idx index.EmbeddingIndex
	k   int
}

// NewRetrievalAgent creates a retrieval agent returning up to k chunks. k below 1 uses DefaultK.
func NewRetrievalAgent(idx index.EmbeddingIndex, k int) *RetrievalAgent {
	if k < 1 {
		k = DefaultK
	}
	return &RetrievalAgent{idx: idx, k: k}
}

// Retrieve returns the texts of the k most similar chunks, best first, separated by a blank line.
// An empty index yields an empty context and no error.
func (a *RetrievalAgent) Retrieve(ctx context.Context, question string) (string, []document.Match, error) {
	matches, err := a.idx.SimilaritySearch(ctx, question, a.k)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.ErrIndexRead, err, "retrieval failed")
	}
	if len(matches) > a.k {
		matches = matches[:a.k]
	}

	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Chunk.Text)
	}
	return strings.Join(texts, contextSeparator), matches, nil
}

// DraftingAgent writes a candidate answer grounded in the retrieved context.
type DraftingAgent struct {
	model Completer
}

func NewDraftingAgent(model Completer) *DraftingAgent {
	return &DraftingAgent{model: model}
}

// Draft answers question from context. Empty context returns NoContextAnswer without calling the model.
func (a *DraftingAgent) Draft(ctx context.Context, question, retrieved string) (string, error) {
	if retrieved == "" {
		contextutil.LoggerFromContext(ctx).DebugContext(ctx, "no context, skipping draft model call")
		return NoContextAnswer, nil
	}

	answer, err := a.model.Complete(ctx, draftPrompt(question, retrieved))
	if err != nil {
		return "", apperr.Wrap(apperr.ErrModelCall, err, "drafting failed")
	}
	return strings.TrimSpace(answer), nil
}

func draftPrompt(question, retrieved string) string {
	return fmt.Sprintf("You are an AI assistant. Use the context below to answer the question.\n\n"+
		"Context:\n%s\n\nQuestion: %s\nAnswer:", retrieved, question)
}

// VerificationAgent checks a candidate answer against the context.
// It only ever returns the candidate unchanged or UnknownAnswer.
type VerificationAgent struct {
	model Completer
}

func NewVerificationAgent(model Completer) *VerificationAgent {
	return &VerificationAgent{model: model}
}

// Verify returns candidate if the model confirms it unchanged, UnknownAnswer otherwise.
// A NoContextAnswer over empty context makes no claim and passes through without a model call.
// An empty candidate is unsupported and becomes UnknownAnswer without a model call.
func (a *VerificationAgent) Verify(ctx context.Context, question, retrieved, candidate string) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if retrieved == "" && candidate == NoContextAnswer {
		logger.DebugContext(ctx, "no context, sentinel passes verification")
		return candidate, nil
	}
	if strings.TrimSpace(candidate) == "" {
		logger.WarnContext(ctx, "empty draft, nothing to verify")
		return UnknownAnswer, nil
	}

	verdict, err := a.model.Complete(ctx, verifyPrompt(question, retrieved, candidate))
	if err != nil {
		return "", apperr.Wrap(apperr.ErrModelCall, err, "verification failed")
	}

	if normalizeAnswer(verdict) == normalizeAnswer(candidate) {
		return candidate, nil
	}
	if normalizeAnswer(verdict) != normalizeAnswer(UnknownAnswer) {
		// A rewritten answer was never checked against the context.
		logger.WarnContext(ctx, "verifier rewrote the answer, rejecting", "verdict", verdict)
	}
	return UnknownAnswer, nil
}

func verifyPrompt(question, retrieved, candidate string) string {
	return fmt.Sprintf("Verify that the proposed answer is fully supported by the context. "+
		"If it is, return the answer unchanged. Otherwise, respond with 'I don't know'.\n\n"+
		"Context:\n%s\n\nQuestion: %s\nProposed Answer: %s\nVerified Answer:", retrieved, question, candidate)
}

// normalizeAnswer drops surrounding whitespace and quotes and a trailing period,
// which models add or strip when echoing an answer.
func normalizeAnswer(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`“”‘’")
	s = strings.TrimSpace(s)
	return strings.TrimSuffix(s, ".")
}
