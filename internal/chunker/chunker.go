// Package chunker splits source documents into bounded, overlapping segments
// suitable for embedding. Splitting is purely positional over the text, so
// identical input always yields identical chunk boundaries; incremental
// indexing relies on that.
package chunker

import (
	"fmt"
	"strings"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

// defaultSeparators, in preference order: paragraph, line, sentence
// punctuation, clause, word. The empty fallback is a hard character cut.
var defaultSeparators = []string{"\n\n", "\n", ".", "!", "?", ",", " "}

// Splitter is a recursive character splitter with fixed size and overlap.
type Splitter struct {
	size    int
	overlap int
	seps    []string
}

// New creates a Splitter. Size and overlap are measured in runes; a
// non-positive size falls back to 1000, an overlap that is negative or not
// smaller than size falls back to size/5.
func New(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Splitter{size: size, overlap: overlap, seps: defaultSeparators}
}

// Split cuts one source document into chunks. Every chunk inherits the full
// metadata of its parent; IDs are the source filename plus a running
// sequence number.
func (s *Splitter) Split(doc domain.SourceDocument) []domain.Chunk {
	pieces := s.splitText(doc.Content)

	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, domain.Chunk{
			ID:      fmt.Sprintf("%s#%d", doc.Source, i),
			Content: p,
			Meta: domain.ChunkMeta{
				Source:      doc.Source,
				Kind:        doc.Kind,
				Knowledge:   doc.Knowledge,
				Description: doc.Description,
				Columns:     doc.Columns,
			},
		})
	}
	return chunks
}

// splitText walks the text emitting windows of at most size runes, cutting
// at the best structural boundary in each window and stepping back by the
// overlap before starting the next one.
func (s *Splitter) splitText(text string) []string {
	runes := []rune(text)
	var out []string

	emit := func(seg []rune) {
		if t := strings.TrimSpace(string(seg)); t != "" {
			out = append(out, t)
		}
	}

	start := 0
	for start < len(runes) {
		if len(runes)-start <= s.size {
			emit(runes[start:])
			break
		}

		cut := s.cutPoint(runes, start, start+s.size)
		emit(runes[start:cut])

		next := cut - s.overlap
		if next <= start {
			// Overlap would stall progress on a short segment.
			next = cut
		}
		start = next
	}
	return out
}

// cutPoint picks the boundary for the window runes[lo:hi]: the position just
// after the last occurrence of the highest-priority separator present, or hi
// when no separator exists in range.
func (s *Splitter) cutPoint(runes []rune, lo, hi int) int {
	window := runes[lo:hi]
	for _, sep := range s.seps {
		sepRunes := []rune(sep)
		if idx := lastIndex(window, sepRunes); idx > 0 {
			return lo + idx + len(sepRunes)
		}
	}
	return hi
}

func lastIndex(hay, needle []rune) int {
	for i := len(hay) - len(needle); i >= 0; i-- {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
