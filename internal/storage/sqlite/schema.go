// ABOUTME: SQLite database schema for case storage
// ABOUTME: Cases table plus the separately provisioned chunk embedding index
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Generation cases; base fields written by one INSERT, improved fields by one guarded UPDATE
CREATE TABLE IF NOT EXISTS cases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL,
    input_text TEXT NOT NULL,
    requirements TEXT NOT NULL DEFAULT '{}',
    code TEXT NOT NULL,
    documentation TEXT NOT NULL,
    validation TEXT NOT NULL,
    improved_code TEXT NOT NULL DEFAULT '',
    improved_documentation TEXT NOT NULL DEFAULT ''
);

-- Chunk embeddings keyed back to their case
CREATE TABLE IF NOT EXISTS case_embeddings (
    id TEXT PRIMARY KEY,
    case_id INTEGER NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
    chunk_index INTEGER NOT NULL,
    text TEXT NOT NULL,
    dimension INTEGER NOT NULL,
    vector BLOB NOT NULL,
    created_at TEXT NOT NULL
);

-- Indexes for efficient querying
CREATE INDEX IF NOT EXISTS idx_cases_created ON cases(created_at);
CREATE INDEX IF NOT EXISTS idx_case_embeddings_case ON case_embeddings(case_id);
`

// DropSchema removes every table created by Schema
const DropSchema = `
DROP TABLE IF EXISTS case_embeddings;
DROP TABLE IF EXISTS cases;
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1
