// Package chunker splits raw text into overlapping word-window chunks.
package chunker

import (
	"strings"

	"github.com/finsight/finsight/internal/models"
)

// Chunker splits text into overlapping word-based windows. It is purely
// functional: identical input always produces identical chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// New creates a chunker with the given window size and overlap (in words).
// Requires chunkSize > chunkOverlap >= 0.
func New(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, models.Validationf("chunk_size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, models.Validationf("chunk_overlap must be non-negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, models.Validationf("chunk_overlap %d must be smaller than chunk_size %d", chunkOverlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split returns the ordered chunk texts for text. Window i starts at
// i*(chunkSize-chunkOverlap); the last window may be shorter than chunkSize.
// Empty or whitespace-only text returns nil.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	chunks := make([]string, 0, (len(words)+step-1)/step)
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
	}
	return chunks
}

// ChunkSize returns the configured window size in words.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured window overlap in words.
func (c *Chunker) Overlap() int { return c.chunkOverlap }
