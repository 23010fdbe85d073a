package document

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docrepo "codereview/internal/gateway/repository/document"
	"codereview/internal/review"
)

// countingStore wraps a memory store and counts origin reads.
type countingStore struct {
	*docrepo.MemoryStore
	mu    sync.Mutex
	gets  int
	delay time.Duration
}

func (c *countingStore) Get(ctx context.Context, id string) (*docrepo.Document, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.MemoryStore.Get(ctx, id)
}

func (c *countingStore) getCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets
}

func TestCachedStoreReadThroughAndInvalidation(t *testing.T) {
	ctx := context.Background()
	origin := &countingStore{MemoryStore: docrepo.NewMemoryStore()}
	store := NewCachedStore(origin, CacheConfig{TTL: time.Minute, MaxEntries: 8})

	doc, err := store.Create(ctx, docrepo.NewDocument{FileName: "a.go", Content: "package a"})
	require.NoError(t, err)

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, 0, origin.getCount(), "create primes the cache")

	got.FileName = "mutated.go"
	again, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.go", again.FileName, "callers get copies")

	require.NoError(t, store.SetStatus(ctx, doc.ID, docrepo.StatusFailed))
	got, err = store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, docrepo.StatusFailed, got.Status)
	assert.Equal(t, 1, origin.getCount())

	rep := review.Report{Summary: review.Summary{TotalIssues: 0, OverallSeverity: review.SeverityLow}}
	updated, err := store.UpdateAnalysis(ctx, doc.ID, got.Revision, docrepo.AnalysisUpdate{Report: rep})
	require.NoError(t, err)
	got, err = store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Revision, got.Revision)
	assert.Equal(t, 1, origin.getCount(), "successful writes refresh the entry")

	_, err = store.UpdateAnalysis(ctx, doc.ID, 1, docrepo.AnalysisUpdate{Report: rep})
	assert.ErrorIs(t, err, docrepo.ErrConflict)

	require.NoError(t, store.Delete(ctx, doc.ID))
	_, err = store.Get(ctx, doc.ID)
	assert.True(t, errors.Is(err, docrepo.ErrNotFound))

	m := store.Metrics()
	assert.GreaterOrEqual(t, m.Hits, uint64(3))
	assert.GreaterOrEqual(t, m.Invalidations, uint64(2))
	assert.Equal(t, uint64(1), m.OriginReadErr)
}

func TestCachedStoreCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	mem := docrepo.NewMemoryStore()
	doc, err := mem.Create(ctx, docrepo.NewDocument{FileName: "a.go", Content: "package a"})
	require.NoError(t, err)

	origin := &countingStore{MemoryStore: mem, delay: 50 * time.Millisecond}
	store := NewCachedStore(origin, CacheConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Get(ctx, doc.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, origin.getCount())
}

func TestCachedStoreExpiry(t *testing.T) {
	ctx := context.Background()
	origin := &countingStore{MemoryStore: docrepo.NewMemoryStore()}
	store := NewCachedStore(origin, CacheConfig{TTL: 20 * time.Millisecond, MaxEntries: 4})
	doc, err := store.Create(ctx, docrepo.NewDocument{FileName: "a.go", Content: "package a"})
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, err = store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, origin.getCount())
}

// gatedStore reads the row and then holds the result until released, so a
// write can land while the read is in flight.
type gatedStore struct {
	*docrepo.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Get(ctx context.Context, id string) (*docrepo.Document, error) {
	doc, err := g.MemoryStore.Get(ctx, id)
	if g.entered != nil {
		close(g.entered)
		g.entered = nil
		<-g.release
	}
	return doc, err
}

func TestCachedStoreDoesNotCacheRowReadBeforeWrite(t *testing.T) {
	writes := map[string]func(s *CachedStore, doc *docrepo.Document) error{
		"update analysis": func(s *CachedStore, doc *docrepo.Document) error {
			rep := review.Report{Summary: review.Summary{OverallSeverity: review.SeverityLow}}
			_, err := s.UpdateAnalysis(context.Background(), doc.ID, doc.Revision, docrepo.AnalysisUpdate{Report: rep})
			return err
		},
		"set status": func(s *CachedStore, doc *docrepo.Document) error {
			return s.SetStatus(context.Background(), doc.ID, docrepo.StatusFailed)
		},
	}
	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			mem := docrepo.NewMemoryStore()
			doc, err := mem.Create(ctx, docrepo.NewDocument{FileName: "a.go", Content: "package a"})
			require.NoError(t, err)

			origin := &gatedStore{MemoryStore: mem, entered: make(chan struct{}), release: make(chan struct{})}
			entered := origin.entered
			store := NewCachedStore(origin, CacheConfig{TTL: time.Minute})

			done := make(chan *docrepo.Document)
			go func() {
				got, err := store.Get(ctx, doc.ID)
				assert.NoError(t, err)
				done <- got
			}()

			<-entered
			require.NoError(t, write(store, doc))
			close(origin.release)
			stale := <-done
			assert.Equal(t, docrepo.StatusInProgress, stale.Status, "the in-flight read returns what it saw")

			want, err := mem.Get(ctx, doc.ID)
			require.NoError(t, err)
			got, err := store.Get(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, want.Revision, got.Revision)
			assert.Equal(t, want.Status, got.Status)
			assert.NotEqual(t, docrepo.StatusInProgress, got.Status)
		})
	}
}
