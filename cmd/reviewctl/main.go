package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codereview/internal/gateway/config"
	"codereview/internal/logging"
)

var (
	logLevelFlag string
	rulesFlag    string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Run the code review pipeline from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rulesFlag, "rules", "", "static rules YAML file (default: RULES_PATH)")

	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rulesCmd())
	return rootCmd
}

// loadConfig reads the environment and applies the shared flags.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	if rulesFlag != "" {
		cfg.Review.RulesPath = rulesFlag
	}
	logger, err := logging.New(cfg.Env, logLevelFlag)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
