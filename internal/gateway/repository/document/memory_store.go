package document

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"codereview/internal/review"
)

// MemoryStore keeps documents in process memory. Used when no DATABASE_URL
// is configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(_ context.Context, in NewDocument) (*Document, error) {
	in, err := validateNew(in)
	if err != nil {
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
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return clone(doc), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(doc), nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]*Document, error) {
	limit = normalizeLimit(limit)
	s.mu.RLock()
	out := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, clone(doc))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateAnalysis(_ context.Context, id string, expectedRevision int64, upd AnalysisUpdate) (*Document, error) {
	upd, err := validateUpdate(upd)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	if doc.Revision != expectedRevision {
		return nil, fmt.Errorf("%w: have %d, expected %d", ErrConflict, doc.Revision, expectedRevision)
	}
	report := upd.Report
	doc.Report = &report
	doc.IssuesFound = report.Summary.TotalIssues
	doc.Severity = report.Summary.OverallSeverity
	doc.Status = upd.Status
	doc.AnalysisCompleted = upd.Status == StatusCompleted
	doc.Revision++
	doc.UpdatedAt = s.now()
	return clone(doc), nil
}

func (s *MemoryStore) UpdateContent(_ context.Context, id string, expectedRevision int64, content string) (*Document, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	if expectedRevision != AnyRevision && doc.Revision != expectedRevision {
		return nil, fmt.Errorf("%w: have %d, expected %d", ErrConflict, doc.Revision, expectedRevision)
	}
	doc.Content = content
	doc.ContentHash = HashContent(content)
	doc.Report = nil
	doc.IssuesFound = 0
	doc.Severity = ""
	doc.Status = StatusInProgress
	doc.AnalysisCompleted = false
	doc.Revision++
	doc.UpdatedAt = s.now()
	return clone(doc), nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[strings.TrimSpace(id)]
	if !ok {
		return ErrNotFound
	}
	doc.Status = status
	doc.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = strings.TrimSpace(id)
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{ByLanguage: map[string]int{}}
	var scoreSum, scored int
	for _, doc := range s.docs {
		st.Documents++
		switch doc.Status {
		case StatusCompleted:
			st.Completed++
		case StatusInProgress:
			st.InProgress++
		case StatusFailed:
			st.Failed++
		}
		if doc.Severity == review.SeverityHigh {
			st.HighSeverity++
		}
		st.IssuesTotal += doc.IssuesFound
		st.ByLanguage[doc.Language]++
		if doc.AnalysisCompleted && doc.Report != nil {
			scoreSum += doc.Report.Summary.OverallScore
			scored++
		}
	}
	if scored > 0 {
		st.AverageScore = float64(scoreSum) / float64(scored)
	}
	return st, nil
}

func (s *MemoryStore) Close() error { return nil }

func clone(d *Document) *Document {
	cp := *d
	if d.Report != nil {
		r := *d.Report
		r.Suggestions = slices.Clone(d.Report.Suggestions)
		r.Summary.MainCategories = slices.Clone(d.Report.Summary.MainCategories)
		cp.Report = &r
	}
	return &cp
}
