package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	doccache "codereview/internal/cache/document"
	"codereview/internal/gateway/config"
	artifactrepo "codereview/internal/gateway/repository/artifact"
	"codereview/internal/gateway/repository/document"
)

// Stores holds the persistence backends chosen from configuration.
type Stores struct {
	Documents document.Store
	Raw       artifactrepo.Store
	Backend   string
}

func (s *Stores) Close() error {
	if s == nil || s.Documents == nil {
		return nil
	}
	return s.Documents.Close()
}

// OpenStores picks SQL storage when DATABASE_URL is set and memory
// otherwise. Raw responses go to S3 when it is fully configured and to the
// document backend otherwise.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s3Factory := newArtifactS3StoreFactory(cfg, logger)

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		return initSQLStores(ctx, dsn, cfg, s3Factory, logger)
	}
	return initInMemoryStores(cfg, s3Factory, logger)
}

func newArtifactS3StoreFactory(cfg *config.Config, logger *zap.Logger) func() (artifactrepo.Store, error) {
	return func() (artifactrepo.Store, error) {
		s3Cfg := artifactrepo.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		}
		s3Store, err := artifactrepo.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		logger.Info("artifact store: s3", zap.String("bucket", s3Cfg.Bucket), zap.String("endpoint", s3Cfg.Endpoint))
		return s3Store, nil
	}
}

func initSQLStores(ctx context.Context, dsn string, cfg *config.Config, s3Factory func() (artifactrepo.Store, error), logger *zap.Logger) (*Stores, error) {
	sqlStore, err := document.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.Migrate(ctx); err != nil {
		return nil, errors.Join(err, sqlStore.Close())
	}
	label := string(sqlStore.Dialect())
	sqlRaw := artifactrepo.NewSQLStore(sqlStore.DB(), sqlStore.Dialect())
	if err := sqlRaw.Migrate(ctx); err != nil {
		return nil, errors.Join(err, sqlStore.Close())
	}
	raw, err := chooseArtifactStore(cfg, sqlRaw, label, s3Factory, logger)
	if err != nil {
		return nil, errors.Join(err, sqlStore.Close())
	}
	logger.Info("document store", zap.String("backend", label))
	return &Stores{
		Documents: doccache.NewCachedStore(sqlStore, cacheConfig(cfg)),
		Raw:       raw,
		Backend:   label,
	}, nil
}

func initInMemoryStores(cfg *config.Config, s3Factory func() (artifactrepo.Store, error), logger *zap.Logger) (*Stores, error) {
	raw, err := chooseArtifactStore(cfg, artifactrepo.NewMemoryStore(), "in-memory", s3Factory, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("document store", zap.String("backend", "in-memory"))
	return &Stores{
		Documents: doccache.NewCachedStore(document.NewMemoryStore(), cacheConfig(cfg)),
		Raw:       raw,
		Backend:   "in-memory",
	}, nil
}

func cacheConfig(cfg *config.Config) doccache.CacheConfig {
	return doccache.CacheConfig{TTL: cfg.Cache.TTL, MaxEntries: cfg.Cache.MaxEntries}
}

func chooseArtifactStore(
	cfg *config.Config,
	fallback artifactrepo.Store,
	fallbackLabel string,
	s3Factory func() (artifactrepo.Store, error),
	logger *zap.Logger,
) (artifactrepo.Store, error) {
	if cfg.Artifact.CanUseS3() {
		return s3Factory()
	}
	if cfg.Artifact.Enabled {
		logger.Info("artifact store: using fallback (s3 config incomplete)", zap.String("backend", fallbackLabel))
	}
	if fallback == nil {
		return nil, fmt.Errorf("artifact fallback store is nil")
	}
	return fallback, nil
}
