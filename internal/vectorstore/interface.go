package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks pdfqa/internal/vectorstore VectorStore

import (
	"context"
	"errors"
)

// ErrInvalidK is returned by Search for a non-positive result count.
var ErrInvalidK = errors.New("k must be greater than 0")

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
// Higher scores are more similar.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// CollectionInfo describes a collection.
type CollectionInfo struct {
	Exists      bool
	VectorSize  int
	PointsCount int
	Status      string
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the k points most similar to query, best first.
	Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Reset removes every point by dropping and recreating the collection.
	Reset(ctx context.Context, collection string, vectorSize int) error

	// Info reports whether the collection exists and how many points it holds.
	Info(ctx context.Context, collection string) (*CollectionInfo, error)

	// Close releases client resources.
	Close() error
}
