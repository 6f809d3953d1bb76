package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"pdfqa/internal/contextutil"
)

// ChromaStore implements VectorStore using the Chroma HTTP API.
// Embeddings are always supplied by the caller; the collection's own embedding
// function is never used.
type ChromaStore struct {
	client chromago.Client

	mu          sync.Mutex
	collections map[string]chromago.Collection
}

// NewChromaStore creates a Chroma client for baseURL (e.g. "http://localhost:8000").
func NewChromaStore(baseURL string) (*ChromaStore, error) {
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}
	return &ChromaStore{
		client:      client,
		collections: make(map[string]chromago.Collection),
	}, nil
}

// collection returns a cached handle, creating the collection when missing.
func (s *ChromaStore) collection(ctx context.Context, name string) (chromago.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c, err := s.client.GetOrCreateCollection(ctx, name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("hnsw:space", "cosine"),
				chromago.NewStringAttribute("created_by", "pdfqa"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection: %w", err)
	}
	s.collections[name] = c
	return c, nil
}

func (s *ChromaStore) forget(name string) {
	s.mu.Lock()
	delete(s.collections, name)
	s.mu.Unlock()
}

// Upsert inserts or updates points in the collection.
func (s *ChromaStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	c, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}

	ids := make([]chromago.DocumentID, len(points))
	texts := make([]string, len(points))
	embs := make([]embeddings.Embedding, len(points))
	metas := make([]chromago.DocumentMetadata, len(points))
	for i, p := range points {
		ids[i] = chromago.DocumentID(p.ID)
		// Chroma stores the document text alongside the metadata.
		texts[i], _ = p.Meta["text"].(string)
		embs[i] = embeddings.NewEmbeddingFromFloat32(p.Vec)
		metas[i] = toChromaMetadata(p.Meta)
	}

	err = c.Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.DebugContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Search queries the collection by embedding. Scores are 1 - cosine distance.
func (s *ChromaStore) Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, ErrInvalidK
	}

	c, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}

	count, err := c.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count collection: %w", err)
	}
	if count == 0 {
		return []SearchResult{}, nil
	}
	if k > count {
		k = count
	}

	res, err := c.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(query)),
		chromago.WithNResults(k),
	)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	idGroups := res.GetIDGroups()
	docGroups := res.GetDocumentsGroups()
	metaGroups := res.GetMetadatasGroups()
	distGroups := res.GetDistancesGroups()
	if len(idGroups) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		var meta map[string]any
		if len(metaGroups) > 0 && i < len(metaGroups[0]) {
			meta = fromChromaMetadata(metaGroups[0][i])
		}
		if meta == nil {
			meta = make(map[string]any)
		}
		if len(docGroups) > 0 && i < len(docGroups[0]) && docGroups[0][i] != nil {
			meta["text"] = docGroups[0][i].ContentString()
		}

		var distance float32
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			distance = float32(distGroups[0][i])
		}

		results = append(results, SearchResult{
			PointID: string(id),
			Score:   distanceToScore(distance),
			Meta:    meta,
		})
	}

	logger.DebugContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

// Delete removes points by their IDs.
func (s *ChromaStore) Delete(ctx context.Context, collection string, ids []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return nil
	}

	c, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}

	docIDs := make([]chromago.DocumentID, len(ids))
	for i, id := range ids {
		docIDs[i] = chromago.DocumentID(id)
	}
	if err := c.Delete(ctx, chromago.WithIDsDelete(docIDs...)); err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", collection, "count", len(ids), "error", err)
		return fmt.Errorf("failed to delete points: %w", err)
	}

	logger.InfoContext(ctx, "deleted points", "collection", collection, "count", len(ids))
	return nil
}

// EnsureCollection creates the collection if it does not exist.
// Chroma infers the dimension from the first insert, so vectorSize is not checked.
func (s *ChromaStore) EnsureCollection(ctx context.Context, collection string, _ int) error {
	_, err := s.collection(ctx, collection)
	return err
}

// Reset drops the collection and recreates it empty.
func (s *ChromaStore) Reset(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	if _, err := s.collection(ctx, collection); err != nil {
		return err
	}
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	s.forget(collection)
	logger.InfoContext(ctx, "collection deleted", "collection", collection)

	return s.EnsureCollection(ctx, collection, vectorSize)
}

// Info reports the point count of the collection.
func (s *ChromaStore) Info(ctx context.Context, collection string) (*CollectionInfo, error) {
	c, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	count, err := c.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count collection: %w", err)
	}
	return &CollectionInfo{
		Exists:      true,
		PointsCount: count,
		Status:      "ok",
	}, nil
}

// Close releases the HTTP client.
func (s *ChromaStore) Close() error {
	return s.client.Close()
}

// toChromaMetadata converts point metadata to Chroma attributes. The text is
// stored as the document, not as metadata.
func toChromaMetadata(meta map[string]any) chromago.DocumentMetadata {
	attrs := make([]*chromago.MetaAttribute, 0, len(meta))
	for k, v := range meta {
		if k == "text" {
			continue
		}
		switch val := v.(type) {
		case string:
			attrs = append(attrs, chromago.NewStringAttribute(k, val))
		case int:
			attrs = append(attrs, chromago.NewIntAttribute(k, int64(val)))
		case int64:
			attrs = append(attrs, chromago.NewIntAttribute(k, val))
		case float64:
			attrs = append(attrs, chromago.NewFloatAttribute(k, val))
		case float32:
			attrs = append(attrs, chromago.NewFloatAttribute(k, float64(val)))
		case bool:
			attrs = append(attrs, chromago.NewBoolAttribute(k, val))
		case nil:
		default:
			attrs = append(attrs, chromago.NewStringAttribute(k, fmt.Sprint(val)))
		}
	}
	return chromago.NewDocumentMetadata(attrs...)
}

// fromChromaMetadata converts Chroma metadata to a plain map.
// DocumentMetadata exposes no iterator, so it goes through JSON.
func fromChromaMetadata(meta chromago.DocumentMetadata) map[string]any {
	if meta == nil {
		return nil
	}
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(jsonBytes, &out); err != nil {
		return nil
	}
	return out
}

// distanceToScore maps cosine distance in [0, 2] to a similarity where higher is better.
func distanceToScore(distance float32) float32 {
	return 1 - distance
}
