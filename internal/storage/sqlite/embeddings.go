// ABOUTME: Chunk embedding index operations for SQLite
// ABOUTME: Stores vectors as BLOBs and ranks chunks by Euclidean distance
package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/harper/mwgen/internal/models"
)

// EmbeddingStore handles the chunk embedding index
type EmbeddingStore struct {
	db *DB
}

// NewEmbeddingStore creates a new EmbeddingStore
func NewEmbeddingStore(db *DB) *EmbeddingStore {
	return &EmbeddingStore{db: db}
}

// SaveChunks replaces the indexed chunks of a case in one transaction
func (s *EmbeddingStore) SaveChunks(ctx context.Context, caseID int64, chunks []models.EmbeddingChunk) error {
	dim := 0
	for i, ch := range chunks {
		if dim == 0 {
			dim = len(ch.Embedding)
		}
		if err := models.ValidateVector(ch.Embedding, dim); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM case_embeddings WHERE case_id = ?`, caseID); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	for _, ch := range chunks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO case_embeddings (id, case_id, chunk_index, text, dimension, vector, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, ch.ChunkID, caseID, ch.Index, ch.Text, len(ch.Embedding), vectorToBlob(ch.Embedding), now)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ch.ChunkID, err)
		}
	}

	return tx.Commit()
}

// Nearest ranks every indexed chunk by ascending Euclidean distance to vector
func (s *EmbeddingStore) Nearest(ctx context.Context, vector []float64, limit int) ([]models.ChunkMatch, error) {
	if err := models.ValidateVector(vector, 0); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `SELECT id, case_id, text, vector FROM case_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []models.ChunkMatch
	for rows.Next() {
		var (
			m    models.ChunkMatch
			blob []byte
		)
		if err := rows.Scan(&m.ChunkID, &m.CaseID, &m.Text, &blob); err != nil {
			return nil, err
		}

		stored := blobToVector(blob)
		if err := models.ValidateVector(vector, len(stored)); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", m.ChunkID, err)
		}
		m.Distance = EuclideanDistance(vector, stored)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// ChunkCount returns the number of indexed chunks
func (s *EmbeddingStore) ChunkCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM case_embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// IndexedCaseIDs returns the ids of cases that have at least one chunk
func (s *EmbeddingStore) IndexedCaseIDs(ctx context.Context) (map[int64]bool, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT case_id FROM case_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed cases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// EuclideanDistance returns the L2 distance between equal-length vectors
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// vectorToBlob converts a float64 slice to a byte slice
func vectorToBlob(vector []float64) []byte {
	buf := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// blobToVector converts a byte slice to a float64 slice
func blobToVector(blob []byte) []float64 {
	vector := make([]float64, len(blob)/8)
	for i := range vector {
		vector[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return vector
}
