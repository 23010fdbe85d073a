package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"codereview/internal/language"
	"codereview/internal/review"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned by UpdateAnalysis when the stored revision no
	// longer matches the caller's expectation.
	ErrConflict = errors.New("document revision conflict")
	ErrInvalid  = errors.New("invalid document")
)

// Status is the analysis lifecycle state of a document.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// Document pairs uploaded source text with its latest analysis report.
// Revision increases on every content or analysis write.
type Document struct {
	ID                string          `json:"id"`
	FileName          string          `json:"fileName"`
	Language          string          `json:"language"`
	Content           string          `json:"content"`
	ContentHash       string          `json:"contentHash"`
	IssuesFound       int             `json:"issuesFound"`
	Severity          review.Severity `json:"severity"`
	Status            Status          `json:"status"`
	Report            *review.Report  `json:"analysisResults,omitempty"`
	AnalysisCompleted bool            `json:"analysisCompleted"`
	Revision          int64           `json:"revision"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Input returns the review input for the stored content.
func (d *Document) Input() review.Input {
	return review.Input{FileName: d.FileName, Language: d.Language, Content: d.Content}
}

// NewDocument is the payload for Create.
type NewDocument struct {
	FileName string
	Language string
	Content  string
	Status   Status
}

// AnalysisUpdate stores a finalized report. Issue count and severity are
// taken from the report summary so the row and the report cannot disagree.
type AnalysisUpdate struct {
	Report review.Report
	Status Status
}

// Stats aggregates the table for the dashboard.
type Stats struct {
	Documents    int            `json:"documents"`
	Completed    int            `json:"completed"`
	InProgress   int            `json:"inProgress"`
	Failed       int            `json:"failed"`
	HighSeverity int            `json:"highSeverity"`
	IssuesTotal  int            `json:"issuesTotal"`
	AverageScore float64        `json:"averageScore"`
	ByLanguage   map[string]int `json:"byLanguage"`
}

// AnyRevision disables the revision check of UpdateContent.
const AnyRevision int64 = 0

// Store persists documents.
type Store interface {
	Create(ctx context.Context, in NewDocument) (*Document, error)
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, limit int) ([]*Document, error)
	// UpdateAnalysis writes the report only if the stored revision equals
	// expectedRevision.
	UpdateAnalysis(ctx context.Context, id string, expectedRevision int64, upd AnalysisUpdate) (*Document, error)
	// UpdateContent replaces the source text and resets the analysis state.
	// expectedRevision works as in UpdateAnalysis; AnyRevision skips the check.
	UpdateContent(ctx context.Context, id string, expectedRevision int64, content string) (*Document, error)
	SetStatus(ctx context.Context, id string, status Status) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// HashContent is the content fingerprint stored alongside each document.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func validateNew(in NewDocument) (NewDocument, error) {
	in.FileName = strings.TrimSpace(in.FileName)
	if in.FileName == "" {
		return in, fmt.Errorf("%w: fileName is required", ErrInvalid)
	}
	if in.Content == "" {
		return in, fmt.Errorf("%w: content is required", ErrInvalid)
	}
	in.Language = language.Normalize(in.Language, in.FileName)
	if in.Status == "" {
		in.Status = StatusInProgress
	}
	if !in.Status.Valid() {
		return in, fmt.Errorf("%w: unknown status %q", ErrInvalid, in.Status)
	}
	return in, nil
}

func validateUpdate(upd AnalysisUpdate) (AnalysisUpdate, error) {
	if upd.Status == "" {
		upd.Status = StatusCompleted
	}
	if !upd.Status.Valid() {
		return upd, fmt.Errorf("%w: unknown status %q", ErrInvalid, upd.Status)
	}
	return upd, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
