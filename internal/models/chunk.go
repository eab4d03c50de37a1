// ABOUTME: EmbeddingChunk is a word-aligned slice of a case's text plus its vector
// ABOUTME: CaseID is a non-owning back-reference to the case that produced it
package models

// EmbeddingChunk is the unit of the retrieval index
type EmbeddingChunk struct {
	ChunkID   string    `json:"chunk_id"`
	CaseID    int64     `json:"case_id"`
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding,omitempty"`
}
