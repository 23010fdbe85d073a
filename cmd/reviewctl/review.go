package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codereview/internal/explain"
	"codereview/internal/gateway/app"
	"codereview/internal/gateway/service/analysis"
	"codereview/internal/language"
	"codereview/internal/review"
)

func reviewCmd() *cobra.Command {
	var (
		fakeFlag     bool
		explainFlag  bool
		languageFlag string
	)

	cmd := &cobra.Command{
		Use:   "review <file>",
		Short: "Review a source file and print the report as JSON",
		Long: `Review sends the file to the configured model, normalizes the answer,
merges the static checks and prints the final report. Nothing is stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if fakeFlag {
				cfg.LLM.Provider = "fake"
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			in := review.Input{
				FileName: filepath.Base(args[0]),
				Language: language.Normalize(languageFlag, filepath.Base(args[0])),
				Content:  string(data),
			}

			ctx := cmd.Context()
			client, err := app.NewLLMClient(ctx, cfg.LLM, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			if explainFlag {
				out, err := explain.NewService(client, cfg.LLM.ExplainModel, logger).Explain(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			rules, err := review.LoadRules(cfg.Review.RulesPath)
			if err != nil {
				return err
			}
			svc := analysis.NewService(nil, nil, client, nil, analysis.Config{
				Model:          cfg.LLM.Model,
				MaxSuggestions: cfg.Review.MaxSuggestions,
				Rules:          rules,
			}, logger)
			rep, err := svc.Review(ctx, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}

	cmd.Flags().BoolVar(&fakeFlag, "fake", false, "use the offline fake model")
	cmd.Flags().BoolVar(&explainFlag, "explain", false, "print a code explanation instead of a review")
	cmd.Flags().StringVar(&languageFlag, "language", "", "language label (default: detected from the file name)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
