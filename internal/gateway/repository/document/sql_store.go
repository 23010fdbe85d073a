package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"codereview/internal/review"
	"codereview/internal/util/jsonutil"
)

// Dialect selects driver-specific SQL.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
    id UUID PRIMARY KEY,
    file_name TEXT NOT NULL,
    language TEXT NOT NULL,
    content TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    issues_found INTEGER NOT NULL DEFAULT 0,
    severity TEXT NOT NULL DEFAULT '' CHECK (severity IN ('', 'high', 'medium', 'low')),
    overall_score INTEGER,
    status TEXT NOT NULL CHECK (status IN ('in-progress', 'completed', 'failed')),
    report JSONB,
    analysis_completed BOOLEAN NOT NULL DEFAULT FALSE,
    revision BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    file_name TEXT NOT NULL,
    language TEXT NOT NULL,
    content TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    issues_found INTEGER NOT NULL DEFAULT 0,
    severity TEXT NOT NULL DEFAULT '' CHECK (severity IN ('', 'high', 'medium', 'low')),
    overall_score INTEGER,
    status TEXT NOT NULL CHECK (status IN ('in-progress', 'completed', 'failed')),
    report TEXT,
    analysis_completed BOOLEAN NOT NULL DEFAULT 0,
    revision INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
`

const documentColumns = `id, file_name, language, content, content_hash, issues_found, severity,
    status, report, analysis_completed, revision, created_at, updated_at`

var rePlaceholder = regexp.MustCompile(`\$(\d+)`)

// SQLStore implements Store on database/sql for Postgres (pgx) and SQLite.
// Queries are written with $N placeholders and rebound for SQLite.
type SQLStore struct {
	db         *sql.DB
	dialect    Dialect
	schemaMu    sync.Mutex
	schemaReady bool
	now        func() time.Time
}

// Open connects to dsn. A "sqlite:" prefix selects SQLite with the rest of
// the string as its path (":memory:" works); anything else goes to pgx.
func Open(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		path = strings.TrimPrefix(path, "//")
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One connection keeps ":memory:" databases shared and serializes
		// writers.
		db.SetMaxOpenConns(1)
		return NewSQLStore(db, DialectSQLite), nil
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return NewSQLStore(db, DialectPostgres), nil
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// DB exposes the handle so other repositories can share the connection.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Migrate creates the schema if needed.
func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.ensureSchema(ctx)
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
	if s.dialect == DialectSQLite {
		ddl = sqliteSchema
	}
	// A failed attempt is retried by the next caller.
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create documents schema: %w", err)
	}
	s.schemaReady = true
	return nil
}

func (s *SQLStore) q(query string) string {
	if s.dialect == DialectSQLite {
		return rePlaceholder.ReplaceAllString(query, "?${1}")
	}
	return query
}

func (s *SQLStore) Create(ctx context.Context, in NewDocument) (*Document, error) {
	in, err := validateNew(in)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	now := s.now()
	doc := &Document{
		ID:          uuid.NewString(),
		FileName:    in.FileName,
		Language:    in.Language,
		Content:     in.Content,
		ContentHash: HashContent(in.Content),
		Status:      in.Status,
		Revision:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err = s.db.ExecContext(ctx, s.q(`
INSERT INTO documents (id, file_name, language, content, content_hash, status, revision, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`),
		doc.ID, doc.FileName, doc.Language, doc.Content, doc.ContentHash, string(doc.Status), doc.Revision, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Document, error) {
	id, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+documentColumns+` FROM documents WHERE id=$1`), id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *SQLStore) List(ctx context.Context, limit int) ([]*Document, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id LIMIT $1`), normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]*Document, 0, 16)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) UpdateAnalysis(ctx context.Context, id string, expectedRevision int64, upd AnalysisUpdate) (*Document, error) {
	upd, err := validateUpdate(upd)
	if err != nil {
		return nil, err
	}
	id, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	raw, err := jsonutil.MarshalNoEscape(upd.Report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	sum := upd.Report.Summary
	res, err := s.db.ExecContext(ctx, s.q(`
UPDATE documents
SET report=$1, issues_found=$2, severity=$3, overall_score=$4, status=$5,
    analysis_completed=$6, revision=revision+1, updated_at=$7
WHERE id=$8 AND revision=$9`),
		string(raw), sum.TotalIssues, string(sum.OverallSeverity), sum.OverallScore, string(upd.Status),
		upd.Status == StatusCompleted, s.now(), id, expectedRevision)
	if err != nil {
		return nil, fmt.Errorf("update analysis: %w", err)
	}
	if err := s.checkAffected(ctx, res, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) UpdateContent(ctx context.Context, id string, expectedRevision int64, content string) (*Document, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalid)
	}
	id, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	query := `
UPDATE documents
SET content=$1, content_hash=$2, report=NULL, issues_found=0, severity='', overall_score=NULL,
    status=$3, analysis_completed=$4, revision=revision+1, updated_at=$5
WHERE id=$6`
	args := []any{content, HashContent(content), string(StatusInProgress), false, s.now(), id}
	if expectedRevision != AnyRevision {
		query += ` AND revision=$7`
		args = append(args, expectedRevision)
	}
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("update content: %w", err)
	}
	if err := s.checkAffected(ctx, res, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	id, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE documents SET status=$1, updated_at=$2 WHERE id=$3`), string(status), s.now(), id)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	id, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM documents WHERE id=$1`), id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByLanguage: map[string]int{}}
	if err := s.ensureSchema(ctx); err != nil {
		return st, err
	}
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
    COALESCE(SUM(CASE WHEN status='completed' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN status='in-progress' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN severity='high' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(issues_found), 0),
    AVG(CASE WHEN analysis_completed THEN overall_score END)
FROM documents`).Scan(&st.Documents, &st.Completed, &st.InProgress, &st.Failed, &st.HighSeverity, &st.IssuesTotal, &avg)
	if err != nil {
		return st, fmt.Errorf("document stats: %w", err)
	}
	st.AverageScore = avg.Float64

	rows, err := s.db.QueryContext(ctx, `SELECT language, COUNT(*) FROM documents GROUP BY language`)
	if err != nil {
		return st, fmt.Errorf("language stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return st, err
		}
		st.ByLanguage[lang] = n
	}
	return st, rows.Err()
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// checkAffected distinguishes a missing row from a revision mismatch after a
// conditional update touched nothing.
func (s *SQLStore) checkAffected(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var current int64
	err = s.db.QueryRowContext(ctx, s.q(`SELECT revision FROM documents WHERE id=$1`), id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: have %d", ErrConflict, current)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc      Document
		severity string
		status   string
		report   sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.FileName, &doc.Language, &doc.Content, &doc.ContentHash,
		&doc.IssuesFound, &severity, &status, &report, &doc.AnalysisCompleted, &doc.Revision,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Severity = review.Severity(severity)
	doc.Status = Status(status)
	if report.Valid && report.String != "" {
		var rep review.Report
		if err := json.Unmarshal([]byte(report.String), &rep); err != nil {
			return nil, fmt.Errorf("decode report for %s: %w", doc.ID, err)
		}
		doc.Report = &rep
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return &doc, nil
}

func parseID(id string) (string, bool) {
	u, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", false
	}
	return u.String(), true
}
