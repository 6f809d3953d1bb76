package indexer

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_loader.go -package=mocks pdfqa/internal/indexer Loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pdfqa/internal/apperr"
	"pdfqa/internal/contextutil"
	"pdfqa/internal/document"
	"pdfqa/internal/index"
	"pdfqa/internal/loader"
	"pdfqa/internal/storage"
)

// DefaultBatchSize is the number of chunks committed per index upsert.
const DefaultBatchSize = 100

// Loader produces the documents of a directory.
type Loader interface {
	Load(ctx context.Context, dir string) (*loader.Result, error)
}

// Report describes one ingestion run.
type Report struct {
	RunID        string     `json:"run_id,omitempty"`
	Dir          string     `json:"dir"`
	Reset        bool       `json:"reset"`
	Documents    int        `json:"documents"`
	Skipped      int        `json:"skipped"`
	Chunks       int        `json:"chunks"`
	Batches      int        `json:"batches"`
	Committed    int        `json:"committed"`
	Stats        ChunkStats `json:"chunk_stats"`
	IndexVersion string     `json:"index_version,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize sets the number of chunks per upsert. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithConcurrency sets how many batches may be in flight at once. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithRateLimit caps batch commits per second. Zero means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(p *Pipeline) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			p.limiter = nil
		}
	}
}

// WithIndexIdentity records the embedding model and collection in each run's index version.
func WithIndexIdentity(embeddingModel, collection string) Option {
	return func(p *Pipeline) {
		p.embeddingModel = embeddingModel
		p.collection = collection
	}
}

// WithRunHook is called after every run started by Watch.
func WithRunHook(hook func(*Report, error)) Option {
	return func(p *Pipeline) {
		p.runHook = hook
	}
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pipeline loads a directory, splits the documents and commits the chunks to the index in batches.
type Pipeline struct {
	loader   Loader
	idx      index.EmbeddingIndex
	splitter *Splitter
	ledger   storage.RunStore

	batchSize      int
	concurrency    int
	limiter        *rate.Limiter
	embeddingModel string
	collection     string
	runHook        func(*Report, error)
	logger         *slog.Logger
}

// NewPipeline creates an ingestion pipeline. The splitter is already validated;
// ledger may be nil to skip run bookkeeping.
func NewPipeline(ldr Loader, idx index.EmbeddingIndex, splitter *Splitter, ledger storage.RunStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		loader:      ldr,
		idx:         idx,
		splitter:    splitter,
		ledger:      ledger,
		batchSize:   DefaultBatchSize,
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "ingest")
	return p
}

// Ingest runs the whole pipeline over dir and returns the run report.
// When resetFirst is set the index is cleared before the first batch is committed.
// A failed batch stops the run and yields an *apperr.BatchError; batches committed
// before it stay in the index. The report is returned on failure too.
func (p *Pipeline) Ingest(ctx context.Context, dir string, resetFirst bool) (*Report, error) {
	report := &Report{
		Dir:          dir,
		Reset:        resetFirst,
		IndexVersion: IndexVersion(p.splitter.Size(), p.splitter.Overlap(), p.embeddingModel, p.collection),
	}

	run := &storage.Run{Dir: dir, Reset: resetFirst, IndexVersion: report.IndexVersion}
	p.startRun(ctx, run)
	report.RunID = run.ID

	logger := contextutil.LoggerOr(ctx, p.logger).With("run_id", run.ID, "dir", dir)
	ctx = contextutil.WithLogger(ctx, logger)

	err := p.ingest(ctx, report, resetFirst)
	p.finishRun(ctx, run, report, err)

	if err != nil {
		logger.ErrorContext(ctx, "ingestion failed", "error", err, "committed", report.Committed)
		return report, err
	}
	logger.InfoContext(ctx, "ingestion completed",
		"documents", report.Documents,
		"skipped", report.Skipped,
		"chunks", report.Chunks,
		"batches", report.Batches,
		"index_version", report.IndexVersion,
	)
	return report, nil
}

func (p *Pipeline) ingest(ctx context.Context, report *Report, resetFirst bool) error {
	logger := contextutil.LoggerOr(ctx, p.logger)

	res, err := p.loader.Load(ctx, report.Dir)
	if err != nil {
		return err
	}
	report.Documents = len(res.Documents)
	report.Skipped = len(res.Skipped)

	var chunks []document.Chunk
	for _, doc := range res.Documents {
		chunks = append(chunks, p.splitter.Split(doc)...)
	}
	report.Chunks = len(chunks)
	report.Stats = ComputeChunkStats(chunks)

	logger.InfoContext(ctx, "documents split",
		"documents", report.Documents,
		"chunks", report.Chunks,
		"chunk_size", p.splitter.Size(),
		"chunk_overlap", p.splitter.Overlap(),
	)

	if resetFirst {
		if err := p.idx.Reset(ctx); err != nil {
			return err
		}
	}

	batches := splitBatches(chunks, p.batchSize)
	report.Batches = len(batches)
	return p.commit(ctx, report, batches)
}

// commit upserts batches with at most p.concurrency in flight. With concurrency 1
// batches are committed strictly in order.
func (p *Pipeline) commit(ctx context.Context, report *Report, batches [][]document.Chunk) error {
	logger := contextutil.LoggerOr(ctx, p.logger)

	var mu sync.Mutex
	committedBatches := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, batch := range batches {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &apperr.BatchError{Batch: i, Err: apperr.Wrap(apperr.ErrIndexWrite, err, "ingestion aborted")}
			}
			if p.limiter != nil {
				if err := p.limiter.Wait(gctx); err != nil {
					return &apperr.BatchError{Batch: i, Err: apperr.Wrap(apperr.ErrIndexWrite, err, "ingestion aborted")}
				}
			}
			if err := p.idx.Upsert(gctx, batch); err != nil {
				return &apperr.BatchError{Batch: i, Err: err}
			}

			mu.Lock()
			committedBatches++
			report.Committed += len(batch)
			mu.Unlock()

			logger.DebugContext(gctx, "batch committed", "batch", i, "size", len(batch))
			p.recordBatch(ctx, report.RunID, i, len(batch))
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		if committedBatches == len(batches) {
			return nil
		}
		// The caller's context ended before every batch was scheduled.
		return &apperr.BatchError{
			Batch:            committedBatches,
			CommittedBatches: committedBatches,
			CommittedChunks:  report.Committed,
			Err:              apperr.Wrap(apperr.ErrIndexWrite, context.Cause(gctx), "ingestion aborted"),
		}
	}

	var batchErr *apperr.BatchError
	if !errors.As(err, &batchErr) {
		return apperr.Wrap(apperr.ErrIndexWrite, err, "ingestion aborted")
	}
	mu.Lock()
	batchErr.CommittedBatches = committedBatches
	batchErr.CommittedChunks = report.Committed
	mu.Unlock()
	return batchErr
}

func splitBatches(chunks []document.Chunk, size int) [][]document.Chunk {
	var batches [][]document.Chunk
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		batches = append(batches, chunks[start:end])
	}
	return batches
}

// Ledger failures are logged and never fail ingestion.

func (p *Pipeline) startRun(ctx context.Context, run *storage.Run) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.StartRun(ctx, run); err != nil {
		contextutil.LoggerOr(ctx, p.logger).WarnContext(ctx, "failed to record run start", "error", err)
	}
}

func (p *Pipeline) recordBatch(ctx context.Context, runID string, batch, size int) {
	if p.ledger == nil || runID == "" {
		return
	}
	if err := p.ledger.RecordBatch(ctx, runID, batch, size); err != nil {
		contextutil.LoggerOr(ctx, p.logger).WarnContext(ctx, "failed to record batch", "batch", batch, "error", err)
	}
}

func (p *Pipeline) finishRun(ctx context.Context, run *storage.Run, report *Report, runErr error) {
	if p.ledger == nil || run.ID == "" {
		return
	}
	run.Status = storage.RunSucceeded
	if runErr != nil {
		run.Status = storage.RunFailed
		run.Error = runErr.Error()
	}
	run.Documents = report.Documents
	run.Chunks = report.Chunks
	run.Committed = report.Committed

	// The run outcome is recorded even when the caller has gone away.
	if err := p.ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		contextutil.LoggerOr(ctx, p.logger).WarnContext(ctx, "failed to record run outcome", "error", err)
	}
}
