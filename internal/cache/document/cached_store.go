package document

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	docrepo "codereview/internal/gateway/repository/document"
)

type Store = docrepo.Store

type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:        5 * time.Minute,
		MaxEntries: 256,
	}
}

type MetricsSnapshot struct {
	Hits          uint64
	Misses        uint64
	OriginReads   uint64
	OriginReadErr uint64
	Invalidations uint64
}

type Metrics struct {
	hits          atomic.Uint64
	misses        atomic.Uint64
	originReads   atomic.Uint64
	originReadErr atomic.Uint64
	invalidations atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		OriginReads:   m.originReads.Load(),
		OriginReadErr: m.originReadErr.Load(),
		Invalidations: m.invalidations.Load(),
	}
}

// CachedStore is a read-through cache of Get in front of a document Store.
// Every write replaces or evicts the cached entry for its id. List and
// Stats always go to the origin.
//
// A miss records a pending fill before it reads the origin. A write to the
// same id marks that fill stale, so a row read before the write can never
// land in the cache after it.
type CachedStore struct {
	origin  Store
	docs    *expirable.LRU[string, *docrepo.Document]
	group   singleflight.Group
	metrics Metrics

	mu    sync.Mutex
	fills map[string]*pendingFill
}

type pendingFill struct {
	stale bool
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	return &CachedStore{
		origin: origin,
		docs:   expirable.NewLRU[string, *docrepo.Document](cfg.MaxEntries, nil, cfg.TTL),
		fills:  make(map[string]*pendingFill),
	}
}

func (s *CachedStore) Metrics() MetricsSnapshot { return s.metrics.snapshot() }

func (s *CachedStore) Create(ctx context.Context, in docrepo.NewDocument) (*docrepo.Document, error) {
	doc, err := s.origin.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.store(doc.ID, doc)
	return doc, nil
}

func (s *CachedStore) Get(ctx context.Context, id string) (*docrepo.Document, error) {
	if doc, ok := s.docs.Get(id); ok {
		s.metrics.hits.Add(1)
		return copyDoc(doc), nil
	}
	s.metrics.misses.Add(1)
	v, err, _ := s.group.Do(id, func() (any, error) {
		fill := s.beginFill(id)
		s.metrics.originReads.Add(1)
		doc, err := s.origin.Get(ctx, id)
		s.endFill(id, fill, doc, err)
		if err != nil {
			s.metrics.originReadErr.Add(1)
			return nil, err
		}
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return copyDoc(v.(*docrepo.Document)), nil
}

func (s *CachedStore) List(ctx context.Context, limit int) ([]*docrepo.Document, error) {
	return s.origin.List(ctx, limit)
}

func (s *CachedStore) UpdateAnalysis(ctx context.Context, id string, expectedRevision int64, upd docrepo.AnalysisUpdate) (*docrepo.Document, error) {
	doc, err := s.origin.UpdateAnalysis(ctx, id, expectedRevision, upd)
	return s.afterWrite(id, doc, err)
}

func (s *CachedStore) UpdateContent(ctx context.Context, id string, expectedRevision int64, content string) (*docrepo.Document, error) {
	doc, err := s.origin.UpdateContent(ctx, id, expectedRevision, content)
	return s.afterWrite(id, doc, err)
}

func (s *CachedStore) SetStatus(ctx context.Context, id string, status docrepo.Status) error {
	err := s.origin.SetStatus(ctx, id, status)
	s.invalidate(id)
	return err
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	err := s.origin.Delete(ctx, id)
	s.invalidate(id)
	return err
}

func (s *CachedStore) Stats(ctx context.Context) (docrepo.Stats, error) {
	return s.origin.Stats(ctx)
}

func (s *CachedStore) Close() error {
	s.docs.Purge()
	return s.origin.Close()
}

// afterWrite caches the fresh row on success; on failure (a conflict
// included) the entry is dropped so the next Get reloads it.
func (s *CachedStore) afterWrite(id string, doc *docrepo.Document, err error) (*docrepo.Document, error) {
	if err != nil {
		s.invalidate(id)
		return nil, err
	}
	s.store(id, doc)
	return doc, nil
}

func (s *CachedStore) beginFill(id string) *pendingFill {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &pendingFill{}
	s.fills[id] = f
	return f
}

func (s *CachedStore) endFill(id string, f *pendingFill, doc *docrepo.Document, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fills[id] == f {
		delete(s.fills, id)
	}
	if err == nil && !f.stale {
		s.docs.Add(id, copyDoc(doc))
	}
}

// markWritten must be called with mu held.
func (s *CachedStore) markWritten(id string) {
	if f, ok := s.fills[id]; ok {
		f.stale = true
	}
}

func (s *CachedStore) store(id string, doc *docrepo.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markWritten(id)
	s.docs.Add(id, copyDoc(doc))
}

func (s *CachedStore) invalidate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markWritten(id)
	if s.docs.Remove(id) {
		s.metrics.invalidations.Add(1)
	}
}

func copyDoc(d *docrepo.Document) *docrepo.Document {
	cp := *d
	return &cp
}
