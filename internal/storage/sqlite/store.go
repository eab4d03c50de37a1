// ABOUTME: Store is the record store used by the pipeline, retrieval, and every surface
// ABOUTME: Serializes writes and wraps the case and embedding stores behind one handle
package sqlite

import (
	"context"
	"fmt"
	"sync"

	"github.com/harper/mwgen/internal/models"
)

// Store manages all persistent data using SQLite
type Store struct {
	db         *DB
	cases      *CaseStore
	embeddings *EmbeddingStore
	mu         sync.RWMutex
}

// NewStore opens (or creates) the database at path. An empty path uses DefaultDBPath.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultDBPath()
	}
	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStore(db), nil
}

// NewStoreInMemory creates an in-memory store (for testing)
func NewStoreInMemory() (*Store, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return newStore(db), nil
}

func newStore(db *DB) *Store {
	return &Store{
		db:         db,
		cases:      NewCaseStore(db),
		embeddings: NewEmbeddingStore(db),
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.db.Path()
}

// Insert persists a complete case
func (s *Store) Insert(ctx context.Context, c models.Case) (models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cases.Insert(ctx, c)
}

// SaveImprovement attaches the improved revision to an existing case
func (s *Store) SaveImprovement(ctx context.Context, id int64, code, documentation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cases.SaveImprovement(ctx, id, code, documentation)
}

// Get retrieves a case by id
func (s *Store) Get(ctx context.Context, id int64) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cases.Get(ctx, id)
}

// ListAll returns every case, most recent first
func (s *Store) ListAll(ctx context.Context) ([]models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cases.ListAll(ctx)
}

// ListByDate returns the cases of one calendar date, most recent first
func (s *Store) ListByDate(ctx context.Context, date string) ([]models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cases.ListByDate(ctx, date)
}

// Dates returns the distinct dates that have cases, newest first
func (s *Store) Dates(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cases.Dates(ctx)
}

// Count returns the number of stored cases
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cases.Count(ctx)
}

// Reset drops all cases and the embedding index
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.resetSchema(ctx)
}

// SaveChunks replaces the indexed chunks for a case
func (s *Store) SaveChunks(ctx context.Context, caseID int64, chunks []models.EmbeddingChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embeddings.SaveChunks(ctx, caseID, chunks)
}

// Nearest ranks indexed chunks by distance to vector
func (s *Store) Nearest(ctx context.Context, vector []float64, limit int) ([]models.ChunkMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddings.Nearest(ctx, vector, limit)
}

// ChunkCount returns the number of indexed chunks
func (s *Store) ChunkCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddings.ChunkCount(ctx)
}

// IndexedCaseIDs returns the ids of cases present in the embedding index
func (s *Store) IndexedCaseIDs(ctx context.Context) (map[int64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddings.IndexedCaseIDs(ctx)
}
