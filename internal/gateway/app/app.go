package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"codereview/internal/explain"
	"codereview/internal/gateway/config"
	"codereview/internal/gateway/handler"
	"codereview/internal/gateway/server"
	"codereview/internal/gateway/service/analysis"
	"codereview/internal/llm"
	"codereview/internal/logging"
	"codereview/internal/review"
)

type App struct {
	server   *server.Server
	stores   *Stores
	client   llm.LLMClient
	analysis *analysis.Service
	events   *analysis.EventBroker
	log      *zap.Logger
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return Build(ctx, cfg, logger)
}

// Build wires the application from an already loaded configuration.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Dependencies
	rules, err := review.LoadRules(cfg.Review.RulesPath)
	if err != nil {
		return nil, err
	}
	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	client, err := NewLLMClient(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, errors.Join(err, stores.Close())
	}
	logger.Info("llm client", zap.String("provider", cfg.LLM.Provider), zap.String("name", client.Name()))

	events := analysis.NewEventBroker()
	analysisSvc := analysis.NewService(stores.Documents, stores.Raw, client, events, analysis.Config{
		Model:          cfg.LLM.Model,
		MaxSuggestions: cfg.Review.MaxSuggestions,
		Rules:          rules,
	}, logger)
	explainSvc := explain.NewService(client, cfg.LLM.ExplainModel, logger)

	h := handler.New(handler.Deps{
		Documents: stores.Documents,
		Raw:       stores.Raw,
		Analysis:  analysisSvc,
		Explain:   explainSvc,
		Review: review.Options{
			MaxSuggestions: cfg.Review.MaxSuggestions,
			Rules:          rules,
		},
		MaxUploadBytes: cfg.Review.MaxUploadBytes,
		Logger:         logger,
	})

	// Routing & Server
	srv := server.New(cfg.Port, server.NewMux(h, logger), logger)

	return &App{
		server:   srv,
		stores:   stores,
		client:   client,
		analysis: analysisSvc,
		events:   events,
		log:      logger,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

// Shutdown stops the server, waits for background analyses, ends watch
// streams and releases backends. Stores close last so that cancelled
// analyses can still record their failure.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if derr := a.analysis.Drain(ctx); derr != nil {
		a.log.Warn("background analyses cancelled", zap.Error(derr))
		err = errors.Join(err, derr)
	}
	a.events.Close()
	err = errors.Join(err, a.client.Close(), a.stores.Close())
	_ = a.log.Sync()
	return err
}
