// ABOUTME: ChunkEngine splits case text into word-aligned chunks for embedding
// ABOUTME: A chunk closes once its accumulated length, counting one separator per word, reaches the size
package core

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/harper/mwgen/internal/models"
)

// DefaultChunkSize is the chunk threshold in characters
const DefaultChunkSize = 1000

// ChunkEngine handles word-boundary text chunking
type ChunkEngine struct {
	size int
}

// NewChunkEngine creates a new ChunkEngine. A size <= 0 uses DefaultChunkSize.
func NewChunkEngine(size int) *ChunkEngine {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &ChunkEngine{size: size}
}

// Size returns the chunk threshold
func (ce *ChunkEngine) Size() int {
	return ce.size
}

// Split breaks text into chunks without ever splitting a word.
// The word that makes a chunk reach the threshold stays in that chunk,
// and any trailing partial chunk is emitted even when under the threshold.
func (ce *ChunkEngine) Split(text string) []string {
	var (
		chunks  []string
		current []string
		size    int
	)

	for _, word := range strings.Fields(text) {
		current = append(current, word)
		size += utf8.RuneCountInString(word) + 1
		if size >= ce.size {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
			size = 0
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

// Chunk splits text into index chunks owned by caseID. Embeddings are left empty.
func (ce *ChunkEngine) Chunk(caseID int64, text string) []models.EmbeddingChunk {
	parts := ce.Split(text)
	chunks := make([]models.EmbeddingChunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, models.EmbeddingChunk{
			ChunkID: generateChunkID(),
			CaseID:  caseID,
			Index:   i,
			Text:    p,
		})
	}
	return chunks
}

// generateChunkID generates a unique chunk ID
func generateChunkID() string {
	return "chunk_" + uuid.New().String()
}
