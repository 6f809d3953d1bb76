package document

import (
	"fmt"
	"maps"
)

// Metadata keys shared by the loader, the chunker and the index.
const (
	MetaSource     = "source"
	MetaPages      = "pages"
	MetaChunkIndex = "chunk_index"
	MetaText       = "text"
)

// Document is a loaded source file. It is not modified after loading.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Chunk is a span of a document's text plus inherited metadata and its chunk index.
type Chunk struct {
	Text     string
	Metadata map[string]any
}

// Match is a similarity search hit.
type Match struct {
	Chunk Chunk
	Score float32
}

// NewChunk builds a chunk for doc at position index.
func NewChunk(doc Document, text string, index int) Chunk {
	meta := make(map[string]any, len(doc.Metadata)+2)
	maps.Copy(meta, doc.Metadata)
	if _, ok := meta[MetaSource]; !ok {
		meta[MetaSource] = doc.ID
	}
	meta[MetaChunkIndex] = index
	return Chunk{Text: text, Metadata: meta}
}

// Source returns the source path recorded in the chunk metadata.
func (c Chunk) Source() string {
	s, _ := c.Metadata[MetaSource].(string)
	return s
}

// Index returns the chunk index. Numeric types produced by payload decoding are accepted.
func (c Chunk) Index() int {
	switch v := c.Metadata[MetaChunkIndex].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	}
	return 0
}

// Key identifies the chunk across ingestion runs.
func (c Chunk) Key() string {
	return fmt.Sprintf("%s#%d", c.Source(), c.Index())
}

// Texts returns the text of every chunk in order.
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}
