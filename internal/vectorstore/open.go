package vectorstore

import "fmt"

// Open creates the store for backend ("chroma" or "qdrant") at url.
func Open(backend, url string) (VectorStore, error) {
	switch backend {
	case "chroma":
		return NewChromaStore(url)
	case "qdrant":
		return NewQdrantStore(url)
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", backend)
	}
}
