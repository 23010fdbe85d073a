package explain

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"codereview/internal/language"
	"codereview/internal/llm"
	"codereview/internal/review"
)

var ErrEmptyContent = errors.New("explain: content is required")

// Generation settings for explanations; they are longer and looser than
// reviews.
const (
	Temperature     = 0.7
	MaxOutputTokens = 4000
)

type Service struct {
	client llm.LLMClient
	model  string
	log    *zap.Logger
}

// NewService builds an explainer. model overrides the client's default
// model when non-empty.
func NewService(client llm.LLMClient, model string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, model: model, log: logger.Named("explain")}
}

// Explain asks the model for a walkthrough of in. Any model failure yields
// the heuristic explanation; only blank content is an error.
func (s *Service) Explain(ctx context.Context, in review.Input) (Explanation, error) {
	if strings.TrimSpace(in.Content) == "" {
		return Explanation{}, ErrEmptyContent
	}
	in.Language = language.Normalize(in.Language, in.FileName)
	aiml := language.IsAIML(in.Content, in.Language)

	ctx = llm.WithPhase(ctx, llm.PhaseUnderstand)
	ctx = llm.WithOptions(ctx, llm.Options{
		Model:           s.model,
		Temperature:     llm.Float32(Temperature),
		MaxOutputTokens: MaxOutputTokens,
		PlainText:       true,
	})
	raw, err := s.client.GenerateJSON(ctx, BuildPrompt(in, aiml), nil)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return Explanation{}, ctx.Err()
		}
		s.log.Warn("explanation failed, using fallback", zap.String("file", in.FileName), zap.Error(err))
		return Fallback(in, aiml, err.Error()), nil
	}
	out, err := Normalize(string(raw), in, aiml)
	if err != nil {
		s.log.Warn("unusable explanation, using fallback", zap.String("file", in.FileName), zap.Error(err))
		return Fallback(in, aiml, err.Error()), nil
	}
	return out, nil
}
