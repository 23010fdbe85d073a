package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codereview/internal/explain"
	"codereview/internal/gateway/handler"
	"codereview/internal/gateway/repository/document"
	"codereview/internal/gateway/service/analysis"
	"codereview/internal/llm"
)

func TestMuxAppliesMiddleware(t *testing.T) {
	docs := document.NewMemoryStore()
	fake := llm.NewFakeClient()
	h := handler.New(handler.Deps{
		Documents: docs,
		Analysis:  analysis.NewService(docs, nil, fake, nil, analysis.Config{}, nil),
		Explain:   explain.NewService(fake, "", nil),
	})
	srv := httptest.NewServer(NewMux(h, nil))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestShutdownBeforeStart(t *testing.T) {
	s := New(":0", http.NotFoundHandler(), nil)
	assert.Equal(t, ":0", s.Addr())
	require.NoError(t, s.Shutdown(context.Background()))
}
