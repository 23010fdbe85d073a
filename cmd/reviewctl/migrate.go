package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	artifactrepo "codereview/internal/gateway/repository/artifact"
	"codereview/internal/gateway/repository/document"
)

func migrateCmd() *cobra.Command {
	var dsnFlag string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the documents and raw_responses tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			dsn := strings.TrimSpace(dsnFlag)
			if dsn == "" {
				dsn = cfg.DatabaseURL
			}
			if dsn == "" {
				return errors.New("no database: set DATABASE_URL or --dsn")
			}
			store, err := document.Open(dsn)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			if err := artifactrepo.NewSQLStore(store.DB(), store.Dialect()).Migrate(ctx); err != nil {
				return err
			}
			logger.Info("schema ready", zap.String("dialect", string(store.Dialect())))
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", store.Dialect())
			return nil
		},
	}
	cmd.Flags().StringVar(&dsnFlag, "dsn", "", "database DSN (postgres URL or sqlite:<path>)")
	return cmd
}
