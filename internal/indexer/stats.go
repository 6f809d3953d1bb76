package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"pdfqa/internal/document"
)

// ChunkerVersion identifies the splitting algorithm.
// Update this when chunk boundaries change for the same input.
const ChunkerVersion = "v2.0"

// ChunkStats summarizes chunk lengths of one run, in runes.
type ChunkStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// ComputeChunkStats measures the rune length of every chunk.
func ComputeChunkStats(chunks []document.Chunk) ChunkStats {
	lengths := make([]int, len(chunks))
	for i, c := range chunks {
		lengths[i] = utf8.RuneCountInString(c.Text)
	}
	return computeLengthStats(lengths)
}

// computeLengthStats computes min, max, mean, and p95.
func computeLengthStats(lengths []int) ChunkStats {
	if len(lengths) == 0 {
		return ChunkStats{}
	}

	sorted := make([]int, len(lengths))
	copy(sorted, lengths)
	sort.Ints(sorted)

	sum := 0
	for _, n := range sorted {
		sum += n
	}
	mean := float64(sum) / float64(len(sorted))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return ChunkStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}

// IndexVersion returns a short hash identifying how an index was built.
// Two runs with the same version produce the same point IDs and vectors for the same input.
func IndexVersion(chunkSize, chunkOverlap int, embeddingModel, collection string) string {
	input := fmt.Sprintf("%s|%s|%s|size=%d|overlap=%d",
		ChunkerVersion, embeddingModel, collection, chunkSize, chunkOverlap)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}
