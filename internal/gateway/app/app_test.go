package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"codereview/internal/gateway/config"
	artifactrepo "codereview/internal/gateway/repository/artifact"
	"codereview/internal/gateway/repository/document"
)

func testConfig() *config.Config {
	return &config.Config{
		Port: ":0",
		Env:  "test",
		LLM:  config.LLMConfig{Provider: "fake", Retries: 1, Timeout: time.Second},
		Cache: config.CacheConfig{
			TTL:        time.Minute,
			MaxEntries: 16,
		},
	}
}

func TestOpenStoresInMemory(t *testing.T) {
	stores, err := OpenStores(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer stores.Close()
	assert.Equal(t, "in-memory", stores.Backend)

	doc, err := stores.Documents.Create(context.Background(), document.NewDocument{FileName: "a.go", Content: "package a"})
	require.NoError(t, err)
	require.NoError(t, stores.Raw.Put(context.Background(), doc.ID, "analysis-1.txt", []byte("{}")))
}

func TestOpenStoresSQLite(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseURL = "sqlite::memory:"
	stores, err := OpenStores(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer stores.Close()
	assert.Equal(t, "sqlite", stores.Backend)

	doc, err := stores.Documents.Create(context.Background(), document.NewDocument{FileName: "a.go", Content: "package a"})
	require.NoError(t, err)
	require.NoError(t, stores.Raw.Put(context.Background(), doc.ID, "analysis-1.txt", []byte("{}")))
	entries, err := stores.Raw.List(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestChooseArtifactStoreUsesS3WhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Artifact = config.ArtifactConfig{
		Enabled: true, Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "raw",
	}
	stores, err := OpenStores(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer stores.Close()
	assert.IsType(t, &artifactrepo.S3Store{}, stores.Raw)
}

func TestNewLLMClientFake(t *testing.T) {
	client, err := NewLLMClient(context.Background(), testConfig().LLM, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "FakeLLM", client.Name())
	require.NoError(t, client.Close())
}

func TestBuildAndShutdown(t *testing.T) {
	a, err := Build(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Shutdown(context.Background()))
}
