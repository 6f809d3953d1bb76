package indexer

import (
	"strings"
	"unicode"

	"pdfqa/internal/apperr"
	"pdfqa/internal/document"
)

// Boundary levels in preference order. Word and character boundaries are handled separately.
var (
	paragraphSeps = [][]rune{[]rune("\n\n")}
	lineSeps      = [][]rune{[]rune("\n")}
	sentenceSeps  = [][]rune{[]rune(". "), []rune("! "), []rune("? ")}
)

// Splitter splits document text into overlapping chunks.
// Sizes are measured in runes (not bytes).
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter validates the chunk parameters and returns a splitter.
func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, apperr.Newf(apperr.ErrChunking, "chunk size must be greater than 0, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, apperr.Newf(apperr.ErrChunking,
			"chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &Splitter{size: chunkSize, overlap: chunkOverlap}, nil
}

// Size returns the target chunk size.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the chunk overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the chunks of doc in order. Each chunk carries the document metadata
// plus its chunk index. Empty documents produce no chunks.
func (s *Splitter) Split(doc document.Document) []document.Chunk {
	texts := s.SplitText(doc.Content)
	chunks := make([]document.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = document.NewChunk(doc, text, i)
	}
	return chunks
}

// SplitText splits text into chunks of at most the configured size.
// Chunk i+1 starts exactly overlap runes before the end of chunk i, so dropping the
// first overlap runes of every chunk after the first and concatenating reproduces text.
// A whitespace-free run longer than the chunk size is kept whole.
func (s *Splitter) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []string
	start := 0

	for {
		if len(runes)-start <= s.size {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		end := s.chunkEnd(runes, start)
		chunks = append(chunks, string(runes[start:end]))
		if end >= len(runes) {
			break
		}
		start = end - s.overlap
	}

	return chunks
}

// chunkEnd picks the end of the chunk starting at start. The end is always past
// start+overlap so that the next chunk starts after this one.
func (s *Splitter) chunkEnd(runes []rune, start int) int {
	limit := start + s.size
	floor := start + s.overlap

	for _, seps := range [][][]rune{paragraphSeps, lineSeps, sentenceSeps} {
		if end := lastSeparatorEnd(runes, floor, limit, seps); end > 0 {
			return end
		}
	}

	// Word boundary: break after the last whitespace rune.
	for i := limit - 1; i >= floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}

	if !hasSpace(runes[start:limit]) {
		// Unbreakable token: extend to the next whitespace.
		end := limit
		for end < len(runes) && !unicode.IsSpace(runes[end]) {
			end++
		}
		return end
	}

	// Whitespace only inside the overlap region: hard character cut.
	return limit
}

// lastSeparatorEnd returns the largest end in (floor, limit] directly after one of seps, or 0.
func lastSeparatorEnd(runes []rune, floor, limit int, seps [][]rune) int {
	best := 0
	for _, sep := range seps {
		for end := limit; end > floor && end > best; end-- {
			if end-len(sep) < 0 {
				break
			}
			if runesEqual(runes[end-len(sep):end], sep) {
				best = end
				break
			}
		}
	}
	return best
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func hasSpace(runes []rune) bool {
	for _, r := range runes {
		if unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
