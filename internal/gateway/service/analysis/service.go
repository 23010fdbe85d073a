// Package analysis runs a document through the review pipeline and
// reconciles the result with the stored record.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	artifactrepo "codereview/internal/gateway/repository/artifact"
	"codereview/internal/gateway/repository/document"
	"codereview/internal/llm"
	"codereview/internal/review"
)

var (
	// ErrStale means the document content changed while it was being
	// analyzed; the result was discarded.
	ErrStale   = errors.New("analysis: document changed during analysis")
	ErrInvalid = errors.New("analysis: invalid request")
	// ErrDraining is returned by Start once shutdown has begun.
	ErrDraining = errors.New("analysis: shutting down")
)

const (
	Temperature     = 0.2
	MaxOutputTokens = 2048

	// BackgroundTimeout bounds analyses started with Start.
	BackgroundTimeout = 5 * time.Minute

	defaultConflictRetries = 3
	maxStaleRestarts       = 3
)

type Config struct {
	Model           string
	MaxSuggestions  int
	Rules           *review.RuleSet
	ConflictRetries int
}

type Service struct {
	docs    document.Store
	raw     artifactrepo.Store
	client  llm.LLMClient
	events  *EventBroker
	cfg     Config
	log     *zap.Logger
	flights singleflight.Group
	now     func() time.Time

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
	bgMu     sync.Mutex
	draining bool
}

// NewService wires the pipeline. raw and events may be nil.
func NewService(docs document.Store, raw artifactrepo.Store, client llm.LLMClient, events *EventBroker, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = NewEventBroker()
	}
	if cfg.ConflictRetries <= 0 {
		cfg.ConflictRetries = defaultConflictRetries
	}
	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &Service{
		docs:     docs,
		raw:      raw,
		client:   client,
		events:   events,
		cfg:      cfg,
		log:      logger.Named("analysis"),
		now:      func() time.Time { return time.Now().UTC() },
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}
}

func (s *Service) Events() *EventBroker { return s.events }

func (s *Service) options() review.Options {
	return review.Options{
		MaxSuggestions: s.cfg.MaxSuggestions,
		Rules:          s.cfg.Rules,
		Model:          s.cfg.Model,
	}
}

// Analyze reviews the stored content of a document and persists the
// report. Concurrent calls for the same id share one run.
func (s *Service) Analyze(ctx context.Context, id string) (*document.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalid)
	}
	v, err, shared := s.flights.Do(id, func() (any, error) {
		return s.run(ctx, id)
	})
	if shared {
		s.log.Debug("joined running analysis", zap.String("document_id", id))
	}
	if err != nil {
		return nil, err
	}
	doc := *v.(*document.Document)
	return &doc, nil
}

// ContentRequest is the body form of an explicit analyze call.
type ContentRequest struct {
	DocumentID string `json:"documentId"`
	Content    string `json:"content"`
	Language   string `json:"language"`
	FileName   string `json:"fileName"`
}

// AnalyzeContent analyzes the caller's content for a document. Content that
// differs from the stored text replaces it first, so the persisted report
// always describes the persisted content.
func (s *Service) AnalyzeContent(ctx context.Context, req ContentRequest) (review.Report, error) {
	if strings.TrimSpace(req.DocumentID) == "" || req.Content == "" {
		return review.Report{}, fmt.Errorf("%w: document id and content are required", ErrInvalid)
	}
	doc, err := s.docs.Get(ctx, req.DocumentID)
	if err != nil {
		return review.Report{}, err
	}
	if doc.ContentHash != document.HashContent(req.Content) {
		if _, err := s.docs.UpdateContent(ctx, doc.ID, doc.Revision, req.Content); err != nil {
			return review.Report{}, fmt.Errorf("replace content: %w", err)
		}
		s.log.Info("content replaced before analysis", zap.String("document_id", doc.ID))
	}
	updated, err := s.Analyze(ctx, doc.ID)
	if err != nil {
		return review.Report{}, err
	}
	if updated.Report == nil {
		return review.Report{}, fmt.Errorf("analysis of %s stored no report", doc.ID)
	}
	return *updated.Report, nil
}

// Start analyzes id in the background, detached from any request. Progress
// is published on the event broker. It fails with ErrDraining after Drain.
func (s *Service) Start(id string) error {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.draining {
		return ErrDraining
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		s.runBackground(id)
	}()
	return nil
}

func (s *Service) runBackground(id string) {
	ctx, cancel := context.WithTimeout(s.bgCtx, BackgroundTimeout)
	defer cancel()
	for attempt := 1; ; attempt++ {
		_, err := s.Analyze(ctx, id)
		// A stale result belongs to a run over older content, possibly one
		// this call joined; the current content still needs its own run.
		if errors.Is(err, ErrStale) && attempt < maxStaleRestarts {
			continue
		}
		if err != nil {
			s.log.Warn("background analysis", zap.String("document_id", id), zap.Error(err))
		}
		return
	}
}

// Drain stops accepting background runs and waits for the running ones.
// If ctx ends first the runs are cancelled, which marks their documents
// failed, and Drain still waits for them before returning ctx's error.
func (s *Service) Drain(ctx context.Context) error {
	s.bgMu.Lock()
	s.draining = true
	s.bgMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	defer s.bgCancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.bgCancel()
		<-done
		return ctx.Err()
	}
}

// Review runs the pipeline without a stored document.
func (s *Service) Review(ctx context.Context, in review.Input) (review.Report, error) {
	rep, _, err := s.generate(ctx, "", in)
	return rep, err
}

func (s *Service) run(ctx context.Context, id string) (*document.Document, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	log := s.log.With(zap.String("document_id", id), zap.Int64("revision", doc.Revision))

	if doc.Status != document.StatusInProgress {
		if err := s.docs.SetStatus(ctx, id, document.StatusInProgress); err != nil {
			return nil, fmt.Errorf("mark in-progress: %w", err)
		}
	}
	s.events.Publish(Event{DocumentID: id, Type: EventStatus, Status: document.StatusInProgress, Revision: doc.Revision})

	rep, fellBack, err := s.generate(ctx, id, doc.Input())
	if err != nil {
		s.markFailed(id, err)
		return nil, err
	}
	if fellBack {
		log.Warn("fallback report", zap.String("reason", rep.FallbackReason))
	}

	updated, err := s.persist(ctx, doc, rep)
	switch {
	case err == nil:
		log.Info("analysis stored",
			zap.Int("issues", updated.IssuesFound),
			zap.String("severity", string(updated.Severity)),
			zap.String("source", string(rep.Source)),
		)
		s.events.Publish(Event{DocumentID: id, Type: EventCompleted, Status: updated.Status, Revision: updated.Revision})
		return updated, nil
	case errors.Is(err, ErrStale):
		log.Info("discarding stale analysis")
		s.events.Publish(Event{DocumentID: id, Type: EventStale, Message: err.Error()})
		return nil, err
	case errors.Is(err, document.ErrNotFound):
		log.Info("document deleted during analysis")
		return nil, err
	default:
		log.Error("persist analysis", zap.Error(err))
		s.markFailed(id, err)
		return nil, err
	}
}

// generate calls the model and turns its answer into a final report. Model
// and parse failures produce the fallback report; only cancellation of ctx
// by the caller is returned as an error.
func (s *Service) generate(ctx context.Context, id string, in review.Input) (review.Report, bool, error) {
	opts := s.options()
	callCtx := llm.WithPhase(ctx, llm.PhaseAnalyze)
	callCtx = llm.WithOptions(callCtx, llm.Options{
		Model:           s.cfg.Model,
		Temperature:     llm.Float32(Temperature),
		MaxOutputTokens: MaxOutputTokens,
	})
	if id != "" {
		callCtx = llm.WithHook(callCtx, &eventHook{docID: id, events: s.events})
	}

	raw, err := s.client.GenerateJSON(callCtx, review.BuildReviewPrompt(in, s.cfg.Rules), nil)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return review.Report{}, false, ctx.Err()
		}
		return s.stamp(review.Degraded(in, err.Error(), opts)), true, nil
	}
	s.archive(ctx, id, raw)

	rep, err := review.Process(string(raw), in, opts)
	return s.stamp(rep), err != nil, nil
}

func (s *Service) stamp(rep review.Report) review.Report {
	rep.GeneratedAt = s.now()
	return rep
}

// persist stores rep against the revision it was computed from. A conflict
// with unchanged content retries against the newer revision; changed
// content makes the result stale.
func (s *Service) persist(ctx context.Context, doc *document.Document, rep review.Report) (*document.Document, error) {
	rev := doc.Revision
	var lastErr error
	for attempt := 0; attempt < s.cfg.ConflictRetries; attempt++ {
		updated, err := s.docs.UpdateAnalysis(ctx, doc.ID, rev, document.AnalysisUpdate{
			Report: rep,
			Status: document.StatusCompleted,
		})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, document.ErrConflict) {
			return nil, err
		}
		lastErr = err
		cur, gerr := s.docs.Get(ctx, doc.ID)
		if gerr != nil {
			return nil, gerr
		}
		if cur.ContentHash != doc.ContentHash {
			return nil, fmt.Errorf("%w: revision %d -> %d", ErrStale, doc.Revision, cur.Revision)
		}
		rev = cur.Revision
	}
	return nil, fmt.Errorf("gave up after %d attempts: %w", s.cfg.ConflictRetries, lastErr)
}

func (s *Service) archive(ctx context.Context, id string, raw []byte) {
	if s.raw == nil || id == "" {
		return
	}
	name := artifactrepo.RawResponseName("analysis", s.now())
	if err := s.raw.Put(ctx, id, name, raw); err != nil {
		s.log.Warn("archive raw response", zap.String("document_id", id), zap.Error(err))
	}
}

// markFailed records the failure even when the request context is gone.
func (s *Service) markFailed(id string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.docs.SetStatus(ctx, id, document.StatusFailed); err != nil && !errors.Is(err, document.ErrNotFound) {
		s.log.Warn("mark failed", zap.String("document_id", id), zap.Error(err))
	}
	s.events.Publish(Event{DocumentID: id, Type: EventFailed, Status: document.StatusFailed, Message: cause.Error()})
}
