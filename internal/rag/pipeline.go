package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pdfqa/internal/apperr"
	"pdfqa/internal/contextutil"
	"pdfqa/internal/document"
	"pdfqa/internal/index"
)

// Stage is a state of the query pipeline.
type Stage string

const (
	StageRetrieving Stage = "RETRIEVING"
	StageDrafting   Stage = "DRAFTING"
	StageVerifying  Stage = "VERIFYING"
	StageDone       Stage = "DONE"
)

// agent returns the name of the agent that runs in the stage.
func (s Stage) agent() string {
	switch s {
	case StageRetrieving:
		return "retrieval"
	case StageDrafting:
		return "answer"
	case StageVerifying:
		return "verifier"
	default:
		return strings.ToLower(string(s))
	}
}

const noContextTrace = "[no relevant context retrieved]"

// TraceRecord is the output of one completed stage.
type TraceRecord struct {
	Stage  Stage  `json:"stage"`
	Agent  string `json:"agent"`
	Output string `json:"output"`
}

// Trace lists completed stages in order.
type Trace []TraceRecord

// String renders each record as an "[AGENT NAME AGENT]" header followed by its output.
func (t Trace) String() string {
	var b strings.Builder
	for i, r := range t {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s AGENT]\n%s", strings.ToUpper(r.Agent), r.Output)
	}
	return b.String()
}

// Result is the outcome of a completed query.
type Result struct {
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Trace    Trace            `json:"trace"`
	Matches  []document.Match `json:"-"`
}

// StageError reports the stage that failed and the trace collected before it.
type StageError struct {
	Stage Stage
	Trace Trace
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline answers questions by running retrieval, drafting and verification in order.
type Pipeline struct {
	retrieval    *RetrievalAgent
	drafting     *DraftingAgent
	verification *VerificationAgent
	logger       *slog.Logger
}

// NewPipeline creates a query pipeline over idx. The same model drafts and verifies.
func NewPipeline(idx index.EmbeddingIndex, model Completer, k int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		retrieval:    NewRetrievalAgent(idx, k),
		drafting:     NewDraftingAgent(model),
		verification: NewVerificationAgent(model),
		logger:       logger.With("component", "query"),
	}
}

// Ask runs the pipeline. On failure it returns a *StageError and no answer.
func (p *Pipeline) Ask(ctx context.Context, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &apperr.ValidationError{Field: "question", Message: "question is required"}
	}

	logger := contextutil.LoggerOr(ctx, p.logger)
	ctx = contextutil.WithLogger(ctx, logger)

	var trace Trace
	record := func(stage Stage, output string) {
		trace = append(trace, TraceRecord{Stage: stage, Agent: stage.agent(), Output: output})
		logger.DebugContext(ctx, "stage completed", "stage", stage, "output_length", len(output))
	}
	fail := func(stage Stage, err error) (*Result, error) {
		logger.ErrorContext(ctx, "query failed", "stage", stage, "error", err)
		return nil, &StageError{Stage: stage, Trace: trace, Err: err}
	}

	logger.InfoContext(ctx, "query started", "question_length", len(question))

	stage := StageRetrieving
	retrieved, matches, err := p.retrieval.Retrieve(ctx, question)
	if err != nil {
		return fail(stage, err)
	}
	if retrieved == "" {
		record(stage, noContextTrace)
	} else {
		record(stage, retrieved)
	}

	stage = StageDrafting
	draft, err := p.drafting.Draft(ctx, question, retrieved)
	if err != nil {
		return fail(stage, err)
	}
	record(stage, draft)

	stage = StageVerifying
	answer, err := p.verification.Verify(ctx, question, retrieved, draft)
	if err != nil {
		return fail(stage, err)
	}
	record(stage, answer)

	logger.InfoContext(ctx, "query completed",
		"stage", StageDone,
		"matches", len(matches),
		"verified", answer == draft,
	)

	return &Result{
		Question: question,
		Answer:   answer,
		Trace:    trace,
		Matches:  matches,
	}, nil
}
