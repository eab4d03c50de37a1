// ABOUTME: Nearest-neighbour search results over the chunk embedding index
// ABOUTME: Distance is Euclidean; smaller is more similar
package models

import (
	"errors"
	"fmt"
)

// ChunkMatch is a single hit from the embedding index
type ChunkMatch struct {
	ChunkID  string  `json:"chunk_id"`
	CaseID   int64   `json:"case_id"`
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
}

// ValidateVector checks that an embedding is usable against an index of dimension dim.
// A dim of 0 only checks for emptiness.
func ValidateVector(v []float64, dim int) error {
	if len(v) == 0 {
		return errors.New("embedding vector cannot be empty")
	}
	if dim > 0 && len(v) != dim {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", dim, len(v))
	}
	return nil
}
