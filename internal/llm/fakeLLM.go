package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// Phases used by the review service.
const (
	PhaseAnalyze    = "analyze"
	PhaseUnderstand = "understand"
)

// FakeClient returns deterministic payloads per phase for offline runs and
// tests. Script overrides the payload or error for a phase.
type FakeClient struct {
	mu      sync.Mutex
	scripts map[string]fakeReply
	calls   map[string]int
}

type fakeReply struct {
	raw string
	err error
}

func NewFakeClient() *FakeClient {
	return &FakeClient{scripts: map[string]fakeReply{}, calls: map[string]int{}}
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

// Script makes every call in phase return raw and err.
func (f *FakeClient) Script(phase, raw string, err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[phase] = fakeReply{raw: raw, err: err}
	return f
}

// Calls reports how many times phase was requested.
func (f *FakeClient) Calls(phase string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[phase]
}

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	phase := PhaseFrom(ctx)
	f.mu.Lock()
	f.calls[phase]++
	reply, scripted := f.scripts[phase]
	f.mu.Unlock()
	if scripted {
		if reply.err != nil {
			return nil, reply.err
		}
		return json.RawMessage(reply.raw), nil
	}

	var obj any
	switch phase {
	case PhaseAnalyze:
		obj = map[string]any{
			"summary": map[string]any{
				"totalIssues":     1,
				"overallSeverity": "low",
				"mainCategories":  []string{"readability"},
				"overallScore":    85,
			},
			"suggestions": []any{
				map[string]any{
					"id":          "fake-1",
					"category":    "readability",
					"severity":    "low",
					"title":       "Add a file header comment",
					"description": "The file does not describe its purpose.",
					"lineNumber":  1,
					"suggestion":  "Add a short comment explaining what this file does.",
				},
			},
		}
	case PhaseUnderstand:
		obj = map[string]any{
			"highLevelOverview": "fake overview",
			"detailedBreakdown": []any{
				map[string]any{"section": "Setup", "lineNumbers": "Lines 1-3", "whatItDoes": "fake", "conceptsUsed": []string{"imports"}},
			},
			"keyConcepts":           []any{},
			"programFlow":           []string{"start", "process", "finish"},
			"keyTakeaways":          []string{"fake learning point"},
			"difficulty":            "beginner",
			"estimatedLearningTime": "5 minutes",
		}
	default:
		obj = map[string]any{}
	}
	b, _ := json.Marshal(obj)
	return json.RawMessage(b), nil
}
