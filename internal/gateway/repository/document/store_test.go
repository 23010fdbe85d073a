package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codereview/internal/review"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := Open("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(context.Background()))
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func sampleReport() review.Report {
	return review.Report{
		Summary: review.Summary{
			TotalIssues:     2,
			OverallSeverity: review.SeverityHigh,
			OverallScore:    70,
			MainCategories:  []string{"bugs"},
		},
		Suggestions: []review.Suggestion{
			{ID: "suggestion-1", Category: review.CategoryBugs, Severity: review.SeverityHigh, LineNumber: 1, Title: "t"},
			{ID: "suggestion-2", Category: review.CategoryReadability, Severity: review.SeverityLow, LineNumber: 2, Title: "u"},
		},
		Source:      review.OriginLLM,
		GeneratedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestStoreLifecycle(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc, err := store.Create(ctx, NewDocument{FileName: "main.py", Content: "print('hi')\n"})
			require.NoError(t, err)
			assert.NotEmpty(t, doc.ID)
			assert.Equal(t, "Python", doc.Language, "language detected from the file name")
			assert.Equal(t, StatusInProgress, doc.Status)
			assert.Equal(t, HashContent("print('hi')\n"), doc.ContentHash)
			assert.EqualValues(t, 1, doc.Revision)

			got, err := store.Get(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, doc.Content, got.Content)
			assert.Nil(t, got.Report)
			assert.False(t, got.AnalysisCompleted)

			updated, err := store.UpdateAnalysis(ctx, doc.ID, 1, AnalysisUpdate{Report: sampleReport()})
			require.NoError(t, err)
			assert.EqualValues(t, 2, updated.Revision)
			assert.Equal(t, StatusCompleted, updated.Status)
			assert.True(t, updated.AnalysisCompleted)
			assert.Equal(t, 2, updated.IssuesFound)
			assert.Equal(t, review.SeverityHigh, updated.Severity)
			require.NotNil(t, updated.Report)
			assert.Equal(t, sampleReport().Suggestions, updated.Report.Suggestions)

			_, err = store.UpdateAnalysis(ctx, doc.ID, 1, AnalysisUpdate{Report: sampleReport()})
			assert.ErrorIs(t, err, ErrConflict)

			require.NoError(t, store.SetStatus(ctx, doc.ID, StatusFailed))
			got, err = store.Get(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, got.Status)
			assert.EqualValues(t, 2, got.Revision, "status changes do not bump the revision")

			_, err = store.UpdateContent(ctx, doc.ID, 1, "print('stale')\n")
			assert.ErrorIs(t, err, ErrConflict, "content writes honour the expected revision")

			changed, err := store.UpdateContent(ctx, doc.ID, 2, "print('bye')\n")
			require.NoError(t, err)
			assert.EqualValues(t, 3, changed.Revision)
			assert.NotEqual(t, doc.ContentHash, changed.ContentHash)
			assert.Nil(t, changed.Report)
			assert.Equal(t, StatusInProgress, changed.Status)

			require.NoError(t, store.Delete(ctx, doc.ID))
			_, err = store.Get(ctx, doc.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.Delete(ctx, doc.ID), ErrNotFound)
		})
	}
}

func TestStoreMissingAndInvalid(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			missing := "5f3c0d6e-6f0b-4d7e-9a43-2a7a1f3d9b10"

			_, err := store.Get(ctx, missing)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = store.Get(ctx, "not-a-uuid")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = store.UpdateAnalysis(ctx, missing, 1, AnalysisUpdate{Report: sampleReport()})
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = store.UpdateContent(ctx, missing, AnyRevision, "x")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.SetStatus(ctx, missing, StatusCompleted), ErrNotFound)

			_, err = store.Create(ctx, NewDocument{Content: "x"})
			assert.ErrorIs(t, err, ErrInvalid)
			_, err = store.Create(ctx, NewDocument{FileName: "a.go"})
			assert.ErrorIs(t, err, ErrInvalid)
			_, err = store.Create(ctx, NewDocument{FileName: "a.go", Content: "x", Status: "done"})
			assert.ErrorIs(t, err, ErrInvalid)
			assert.ErrorIs(t, store.SetStatus(ctx, missing, "paused"), ErrInvalid)
		})
	}
}

func TestStoreListAndStats(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			setClock(store, func() time.Time { return base })

			var ids []string
			for i, fn := range []string{"a.go", "b.go", "c.js"} {
				tick := base.Add(time.Duration(i) * time.Minute)
				setClock(store, func() time.Time { return tick })
				doc, err := store.Create(ctx, NewDocument{FileName: fn, Content: "x"})
				require.NoError(t, err)
				ids = append(ids, doc.ID)
			}

			docs, err := store.List(ctx, 2)
			require.NoError(t, err)
			require.Len(t, docs, 2)
			assert.Equal(t, ids[2], docs[0].ID, "newest first")
			assert.Equal(t, ids[1], docs[1].ID)

			docs, err = store.List(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, docs, 3)

			_, err = store.UpdateAnalysis(ctx, ids[0], 1, AnalysisUpdate{Report: sampleReport()})
			require.NoError(t, err)
			require.NoError(t, store.SetStatus(ctx, ids[1], StatusFailed))

			st, err := store.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, st.Documents)
			assert.Equal(t, 1, st.Completed)
			assert.Equal(t, 1, st.Failed)
			assert.Equal(t, 1, st.InProgress)
			assert.Equal(t, 1, st.HighSeverity)
			assert.Equal(t, 2, st.IssuesTotal)
			assert.InDelta(t, 70.0, st.AverageScore, 1e-9)
			assert.Equal(t, map[string]int{"Go": 2, "JavaScript": 1}, st.ByLanguage)
		})
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func setClock(s Store, now func() time.Time) {
	switch st := s.(type) {
	case *MemoryStore:
		st.now = now
	case *SQLStore:
		st.now = now
	}
}

func TestMigrateRetriesAfterFailure(t *testing.T) {
	store, err := Open("sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, store.Migrate(canceled))

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	_, err = store.Create(ctx, NewDocument{FileName: "a.go", Content: "package a"})
	require.NoError(t, err)
}
