package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"codereview/internal/gateway/repository/document"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS raw_responses (
    id SERIAL PRIMARY KEY,
    doc_id TEXT NOT NULL,
    name TEXT NOT NULL,
    content BYTEA NOT NULL DEFAULT ''::bytea,
    size BIGINT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    UNIQUE(doc_id, name)
);
CREATE INDEX IF NOT EXISTS idx_raw_responses_doc_id ON raw_responses(doc_id);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS raw_responses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    doc_id TEXT NOT NULL,
    name TEXT NOT NULL,
    content BLOB NOT NULL,
    size INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE(doc_id, name)
);
CREATE INDEX IF NOT EXISTS idx_raw_responses_doc_id ON raw_responses(doc_id);
`

// SQLStore archives raw responses in the documents database. It shares
// the handle and never closes it.
type SQLStore struct {
	db          *sql.DB
	dialect     document.Dialect
	schemaMu    sync.Mutex
	schemaReady bool
	now         func() time.Time
}

func NewSQLStore(db *sql.DB, dialect document.Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	ddl := postgresSchema
	if s.dialect == document.DialectSQLite {
		ddl = sqliteSchema
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create raw_responses schema: %w", err)
	}
	s.schemaReady = true
	return nil
}

// Migrate creates the raw_responses table if needed.
func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.ensureSchema(ctx)
}

// q rewrites $N placeholders for SQLite, which wants ?N.
func (s *SQLStore) q(query string) string {
	if s.dialect != document.DialectSQLite {
		return query
	}
	return strings.ReplaceAll(query, "$", "?")
}

func (s *SQLStore) Put(ctx context.Context, docID, name string, content []byte) error {
	docID, name, err := cleanKey(docID, name)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	_, err = s.db.ExecContext(ctx, s.q(`
INSERT INTO raw_responses (doc_id, name, content, size, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (doc_id, name)
DO UPDATE SET content=EXCLUDED.content, size=EXCLUDED.size, created_at=EXCLUDED.created_at
`), docID, name, content, int64(len(content)), s.now())
	return err
}

func (s *SQLStore) Get(ctx context.Context, docID, name string) ([]byte, error) {
	docID, name, err := cleanKey(docID, name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var content []byte
	err = s.db.QueryRowContext(ctx, s.q(`SELECT content FROM raw_responses WHERE doc_id=$1 AND name=$2`), docID, name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return content, err
}

// GetURL is unsupported for database storage; it returns an empty string.
func (s *SQLStore) GetURL(context.Context, string, string) (string, error) {
	return "", nil
}

func (s *SQLStore) List(ctx context.Context, docID string) ([]Entry, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return nil, fmt.Errorf("document id is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT name, size, created_at FROM raw_responses WHERE doc_id=$1 ORDER BY name`), docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0, 4)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Size, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteAll(ctx context.Context, docID string) error {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return fmt.Errorf("document id is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM raw_responses WHERE doc_id=$1`), docID)
	return err
}
