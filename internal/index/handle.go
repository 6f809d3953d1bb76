package index

import (
	"context"
	"log/slog"
	"sync"

	"pdfqa/internal/apperr"
	"pdfqa/internal/document"
	"pdfqa/internal/vectorstore"
)

var errClosed = apperr.New(apperr.ErrIndexRead, "index handle closed")

// OpenFunc connects to the index. It runs at most once per Handle.
type OpenFunc func(ctx context.Context) (*VectorIndex, error)

// Handle is the process-wide index handle. It is created at startup and shared by
// the ingestion and query pipelines; the connection is opened on first use.
// Concurrent first callers wait for the same initialization and see the same result,
// including a failed one.
type Handle struct {
	open OpenFunc

	once sync.Once
	idx  *VectorIndex
	err  error
}

// NewHandle creates a handle that calls open on first use.
func NewHandle(open OpenFunc) *Handle {
	return &Handle{open: open}
}

func (h *Handle) get(ctx context.Context) (*VectorIndex, error) {
	h.once.Do(func() {
		// Initialization outlives the first caller's cancellation.
		h.idx, h.err = h.open(context.WithoutCancel(ctx))
	})
	return h.idx, h.err
}

func (h *Handle) Reset(ctx context.Context) error {
	idx, err := h.get(ctx)
	if err != nil {
		return err
	}
	return idx.Reset(ctx)
}

func (h *Handle) Upsert(ctx context.Context, batch []document.Chunk) error {
	idx, err := h.get(ctx)
	if err != nil {
		return err
	}
	return idx.Upsert(ctx, batch)
}

func (h *Handle) SimilaritySearch(ctx context.Context, query string, k int) ([]document.Match, error) {
	idx, err := h.get(ctx)
	if err != nil {
		return nil, err
	}
	return idx.SimilaritySearch(ctx, query, k)
}

// Info reports collection state, opening the index if needed.
func (h *Handle) Info(ctx context.Context) (*vectorstore.CollectionInfo, error) {
	idx, err := h.get(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Info(ctx)
}

// Close closes the index if it was opened. A handle closed before first use
// never opens.
func (h *Handle) Close() error {
	h.once.Do(func() { h.err = errClosed })
	if h.idx == nil {
		return nil
	}
	return h.idx.Close()
}

// Connect returns an OpenFunc that creates the store and makes sure the collection exists.
func Connect(newStore func() (vectorstore.VectorStore, error), embedder Embedder, opts Options, logger *slog.Logger) OpenFunc {
	return func(ctx context.Context) (*VectorIndex, error) {
		store, err := newStore()
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrIndexRead, err, "failed to connect to vector store")
		}
		idx := NewVectorIndex(embedder, store, opts, logger)
		if err := idx.Ensure(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return idx, nil
	}
}
