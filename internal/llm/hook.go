package llm

import (
	"context"
	"encoding/json"
)

// PromptHook observes calls that pass through WithHooks.
type PromptHook interface {
	Before(ctx context.Context, phase, prompt string, input any)
	After(ctx context.Context, phase string, raw json.RawMessage, err error)
}

// Options are per-call generation settings. Zero values mean "provider
// default"; PlainText disables the JSON response MIME type.
type Options struct {
	Model           string
	Temperature     *float32
	MaxOutputTokens int32
	PlainText       bool
}

type ctxKeyHook struct{}
type ctxKeyPhase struct{}
type ctxKeyOptions struct{}

// WithHook attaches a PromptHook to the context used by GenerateJSON.
func WithHook(ctx context.Context, hook PromptHook) context.Context {
	return context.WithValue(ctx, ctxKeyHook{}, hook)
}

// HookFrom returns the hook stored in the context.
func HookFrom(ctx context.Context) PromptHook {
	if v := ctx.Value(ctxKeyHook{}); v != nil {
		if h, ok := v.(PromptHook); ok {
			return h
		}
	}
	return nil
}

func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, ctxKeyPhase{}, phase)
}

// PhaseFrom returns the phase string stored in the context.
func PhaseFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyPhase{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}

// WithOptions attaches generation options for the next call.
func WithOptions(ctx context.Context, opts Options) context.Context {
	return context.WithValue(ctx, ctxKeyOptions{}, opts)
}

// OptionsFrom returns the options stored in the context, or the zero value.
func OptionsFrom(ctx context.Context) Options {
	if v, ok := ctx.Value(ctxKeyOptions{}).(Options); ok {
		return v
	}
	return Options{}
}

// Float32 is a convenience for Options.Temperature.
func Float32(v float32) *float32 { return &v }
