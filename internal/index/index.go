package index

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index.go -package=mocks pdfqa/internal/index EmbeddingIndex,Embedder

import (
	"context"
	"log/slog"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"

	"pdfqa/internal/apperr"
	"pdfqa/internal/contextutil"
	"pdfqa/internal/document"
	"pdfqa/internal/vectorstore"
)

// EmbeddingIndex stores chunks with their embeddings and answers similarity queries.
type EmbeddingIndex interface {
	// Reset removes every entry from the collection.
	Reset(ctx context.Context) error

	// Upsert embeds and stores one batch. The batch either commits or returns an error.
	Upsert(ctx context.Context, batch []document.Chunk) error

	// SimilaritySearch returns up to k chunks ordered by descending score.
	SimilaritySearch(ctx context.Context, query string, k int) ([]document.Match, error)
}

// Embedder turns texts into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures a VectorIndex.
type Options struct {
	Collection string
	VectorSize int
	// Timeout bounds each store call. Zero disables it.
	Timeout time.Duration
}

// VectorIndex implements EmbeddingIndex on an Embedder and a VectorStore.
// Chunk text is kept in the point payload under "text".
type VectorIndex struct {
	embedder Embedder
	store    vectorstore.VectorStore
	opts     Options
	logger   *slog.Logger
}

// NewVectorIndex creates an index over store.
func NewVectorIndex(embedder Embedder, store vectorstore.VectorStore, opts Options, logger *slog.Logger) *VectorIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorIndex{
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logger.With("component", "index", "collection", opts.Collection),
	}
}

// Ensure creates the collection when it does not exist yet.
func (x *VectorIndex) Ensure(ctx context.Context) error {
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()

	if err := x.store.EnsureCollection(ctx, x.opts.Collection, x.opts.VectorSize); err != nil {
		return apperr.Wrap(apperr.ErrIndexRead, err, "failed to open collection "+x.opts.Collection)
	}
	return nil
}

// Reset drops and recreates the collection.
func (x *VectorIndex) Reset(ctx context.Context) error {
	logger := contextutil.LoggerOr(ctx, x.logger)

	ctx, cancel := x.withTimeout(ctx)
	defer cancel()

	if err := x.store.Reset(ctx, x.opts.Collection, x.opts.VectorSize); err != nil {
		return apperr.Wrap(apperr.ErrIndexWrite, err, "failed to reset collection "+x.opts.Collection)
	}
	logger.InfoContext(ctx, "collection reset")
	return nil
}

// Upsert embeds the batch in one call and writes it in one store call.
// Point IDs derive from source and chunk index, so re-ingesting a source overwrites its entries.
func (x *VectorIndex) Upsert(ctx context.Context, batch []document.Chunk) error {
	if len(batch) == 0 {
		return nil
	}

	vecs, err := x.embedder.EmbedTexts(ctx, document.Texts(batch))
	if err != nil {
		return apperr.Wrap(apperr.ErrIndexWrite, err, "failed to embed batch")
	}
	if len(vecs) != len(batch) {
		return apperr.Newf(apperr.ErrIndexWrite, "embedder returned %d vectors for %d chunks", len(vecs), len(batch))
	}

	points := make([]vectorstore.Point, len(batch))
	for i, c := range batch {
		meta := make(map[string]any, len(c.Metadata)+1)
		maps.Copy(meta, c.Metadata)
		meta[document.MetaText] = c.Text
		points[i] = vectorstore.Point{
			ID:   PointID(x.opts.Collection, c),
			Vec:  vecs[i],
			Meta: meta,
		}
	}

	storeCtx, cancel := x.withTimeout(ctx)
	defer cancel()

	if err := x.store.Upsert(storeCtx, x.opts.Collection, points); err != nil {
		return apperr.Wrap(apperr.ErrIndexWrite, err, "failed to upsert batch")
	}
	return nil
}

// SimilaritySearch embeds query and returns the k nearest chunks, best first.
// An empty collection yields an empty result.
func (x *VectorIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]document.Match, error) {
	logger := contextutil.LoggerOr(ctx, x.logger)

	vecs, err := x.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIndexRead, err, "failed to embed query")
	}
	if len(vecs) != 1 {
		return nil, apperr.Newf(apperr.ErrIndexRead, "embedder returned %d vectors for 1 query", len(vecs))
	}

	storeCtx, cancel := x.withTimeout(ctx)
	defer cancel()

	results, err := x.store.Search(storeCtx, x.opts.Collection, vecs[0], k)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIndexRead, err, "failed to search collection")
	}

	matches := make([]document.Match, 0, len(results))
	for _, r := range results {
		meta := make(map[string]any, len(r.Meta))
		maps.Copy(meta, r.Meta)
		text, _ := meta[document.MetaText].(string)
		delete(meta, document.MetaText)
		matches = append(matches, document.Match{
			Chunk: document.Chunk{Text: text, Metadata: meta},
			Score: r.Score,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	logger.DebugContext(ctx, "similarity search", "k", k, "matches", len(matches))
	return matches, nil
}

// Info reports collection state.
func (x *VectorIndex) Info(ctx context.Context) (*vectorstore.CollectionInfo, error) {
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()

	info, err := x.store.Info(ctx, x.opts.Collection)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIndexRead, err, "failed to get collection info")
	}
	return info, nil
}

// Close closes the underlying store.
func (x *VectorIndex) Close() error {
	return x.store.Close()
}

func (x *VectorIndex) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if x.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, x.opts.Timeout)
}

// PointID returns the stable point ID for a chunk in collection.
func PointID(collection string, c document.Chunk) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(collection+"/"+c.Key())).String()
}
