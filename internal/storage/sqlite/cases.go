// ABOUTME: Case persistence operations for SQLite
// ABOUTME: Append-only: one INSERT for base fields, one guarded UPDATE for the improved revision
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harper/mwgen/internal/models"
)

var (
	// ErrNotFound is returned when a case id does not exist
	ErrNotFound = errors.New("case not found")
	// ErrAlreadyImproved is returned when a case already carries an improved revision
	ErrAlreadyImproved = errors.New("case already has an improved revision")
)

// timeLayout is fixed width in UTC so text order matches chronological order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dateLayout is the calendar-date form used for history filtering
const dateLayout = "2006-01-02"

const caseColumns = `id, created_at, input_text, requirements, code, documentation,
	validation, improved_code, improved_documentation`

// CaseStore handles case persistence
type CaseStore struct {
	db *DB
}

// NewCaseStore creates a new CaseStore
func NewCaseStore(db *DB) *CaseStore {
	return &CaseStore{db: db}
}

// Insert writes a complete case as a single row and returns it with its id
func (s *CaseStore) Insert(ctx context.Context, c models.Case) (models.Case, error) {
	if err := c.Validate(); err != nil {
		return models.Case{}, fmt.Errorf("invalid case: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.CreatedAt = c.CreatedAt.UTC()

	reqJSON, err := json.Marshal(c.Requirements)
	if err != nil {
		return models.Case{}, fmt.Errorf("failed to marshal requirements: %w", err)
	}

	res, err := s.db.Exec(ctx, `
		INSERT INTO cases (created_at, input_text, requirements, code, documentation,
			validation, improved_code, improved_documentation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.CreatedAt.Format(timeLayout), c.InputText, string(reqJSON), c.Code, c.Documentation,
		c.Validation, c.ImprovedCode, c.ImprovedDocumentation)
	if err != nil {
		return models.Case{}, fmt.Errorf("failed to insert case: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Case{}, fmt.Errorf("failed to read case id: %w", err)
	}
	c.ID = id

	return c, nil
}

// SaveImprovement records the improved revision of a case. It succeeds at most once per case.
func (s *CaseStore) SaveImprovement(ctx context.Context, id int64, code, documentation string) error {
	if code == "" || documentation == "" {
		return errors.New("improved code and improved documentation must both be non-empty")
	}

	res, err := s.db.Exec(ctx, `
		UPDATE cases
		SET improved_code = ?, improved_documentation = ?
		WHERE id = ? AND improved_code = '' AND improved_documentation = ''
	`, code, documentation, id)
	if err != nil {
		return fmt.Errorf("failed to save improvement: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Nothing updated: tell a missing case from an already improved one
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyImproved
}

// Get retrieves a case by id
func (s *CaseStore) Get(ctx context.Context, id int64) (*models.Case, error) {
	row := s.db.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)

	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListAll returns every case, most recent first
func (s *CaseStore) ListAll(ctx context.Context) ([]models.Case, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+caseColumns+`
		FROM cases
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanCases(rows)
}

// ListByDate returns the cases created on a UTC calendar date (YYYY-MM-DD), most recent first
func (s *CaseStore) ListByDate(ctx context.Context, date string) ([]models.Case, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+caseColumns+`
		FROM cases
		WHERE substr(created_at, 1, 10) = ?
		ORDER BY created_at DESC, id DESC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases by date: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanCases(rows)
}

// Dates returns the distinct calendar dates that have cases, newest first
func (s *CaseStore) Dates(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT substr(created_at, 1, 10) AS day
		FROM cases
		ORDER BY day DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// Count returns the number of stored cases
func (s *CaseStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM cases`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cases: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCase(row rowScanner) (*models.Case, error) {
	var (
		c         models.Case
		createdAt string
		reqJSON   string
	)

	err := row.Scan(&c.ID, &createdAt, &c.InputText, &reqJSON, &c.Code, &c.Documentation,
		&c.Validation, &c.ImprovedCode, &c.ImprovedDocumentation)
	if err != nil {
		return nil, err
	}

	c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("case %d: bad created_at %q: %w", c.ID, createdAt, err)
	}

	if strings.TrimSpace(reqJSON) != "" {
		if err := json.Unmarshal([]byte(reqJSON), &c.Requirements); err != nil {
			return nil, fmt.Errorf("case %d: bad requirements JSON: %w", c.ID, err)
		}
	}

	return &c, nil
}

func scanCases(rows *sql.Rows) ([]models.Case, error) {
	var cases []models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cases, nil
}
