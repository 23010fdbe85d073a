package llm

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fast fake client that returns immediately
type fastClient struct{}

func (f *fastClient) Name() string { return "fast" }
func (f *fastClient) Close() error { return nil }
func (f *fastClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

// spy records timestamps when requests reach the inner client
type spy struct {
	mu    sync.Mutex
	times []time.Time
}

type spyingClient struct {
	next LLMClient
	rec  *spy
}

func (s *spyingClient) Name() string { return s.next.Name() }
func (s *spyingClient) Close() error { return s.next.Close() }
func (s *spyingClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	s.rec.mu.Lock()
	s.rec.times = append(s.rec.times, time.Now())
	s.rec.mu.Unlock()
	return s.next.GenerateJSON(ctx, prompt, input)
}

func TestRate_RPS_2PerSecond_Burst1_Spacing(t *testing.T) {
	// Expect ~>=500ms spacing after the first call when rps=2 and burst=1.
	rec := &spy{}
	cli := Wrap(&spyingClient{next: &fastClient{}, rec: rec}, RateLimit(2, 1))
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	start := time.Now()
	_, err := cli.GenerateJSON(ctx, "p", nil)
	require.NoError(t, err)
	_, err = cli.GenerateJSON(ctx, "p", nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 450*time.Millisecond)
	assert.Len(t, rec.times, 2, "two calls should reach inner client")
}

func TestRate_RPS_2PerSecond_Burst2_FirstTwoImmediate(t *testing.T) {
	cli := RateLimit(2, 2)(&fastClient{})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := cli.GenerateJSON(ctx, "p", nil)
		require.NoError(t, err)
	}
	firstTwo := time.Since(start)

	start3 := time.Now()
	_, err := cli.GenerateJSON(ctx, "p", nil)
	require.NoError(t, err)
	third := time.Since(start3)

	assert.Less(t, firstTwo, 100*time.Millisecond)
	assert.GreaterOrEqual(t, third, 450*time.Millisecond)
}

func TestRate_DisabledPassesThrough(t *testing.T) {
	base := &fastClient{}
	assert.Same(t, LLMClient(base), RateLimit(0, 5)(base))
}

func TestRate_CanceledContext(t *testing.T) {
	cli := RateLimit(0.1, 1)(&fastClient{})
	_, err := cli.GenerateJSON(context.Background(), "p", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = cli.GenerateJSON(ctx, "p", nil)
	assert.Error(t, err)
}
