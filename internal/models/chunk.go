// Package models defines core data structures for chunks, retrieval results, and answers.
package models

import "time"

// Chunk is an immutable unit of indexed text with its embedding vector.
type Chunk struct {
	ID        string    `json:"id" db:"id"`
	Content   string    `json:"content" db:"content"`
	Embedding []float32 `json:"-" db:"-"`
	Metadata  Metadata  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Source returns the value of the "source" metadata key, or "" when unset.
func (c *Chunk) Source() string {
	if c.Metadata == nil {
		return ""
	}
	v, ok := c.Metadata[KeySource]
	if !ok {
		return ""
	}
	return v.Str
}

// RetrievalResult is a single similarity search hit, ranked by descending score.
type RetrievalResult struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// Answer is the result of one question through the full retrieval and
// generation pipeline.
type Answer struct {
	Answer     string   `json:"answer"`
	Model      string   `json:"model"`
	Chunks     []string `json:"chunks"`
	Context    string   `json:"context"`
	ChunkCount int      `json:"chunk_count"`
}
