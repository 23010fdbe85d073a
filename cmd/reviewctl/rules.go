package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"codereview/internal/review"
)

func rulesCmd() *cobra.Command {
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective static rule set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			rs, err := review.LoadRules(cfg.Review.RulesPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch formatFlag {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(rs)
			case "table":
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCATEGORY\tSEVERITY\tLANGUAGES\tTITLE")
				for _, r := range rs.Rules {
					langs := "all"
					if len(r.Languages) > 0 {
						langs = strings.Join(r.Languages, ",")
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Category, r.Severity, langs, r.Title)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if len(rs.Focus) > 0 {
					fmt.Fprintf(out, "\nfocus: %s\n", strings.Join(rs.Focus, ", "))
				}
				if len(rs.SeverityOverrides) > 0 {
					cats := make([]string, 0, len(rs.SeverityOverrides))
					for c := range rs.SeverityOverrides {
						cats = append(cats, c)
					}
					sort.Strings(cats)
					fmt.Fprintln(out, "\nseverity overrides:")
					for _, c := range cats {
						fmt.Fprintf(out, "  %s -> %s\n", c, rs.SeverityOverrides[c])
					}
				}
				return nil
			default:
				return fmt.Errorf("unknown format %q (want table or yaml)", formatFlag)
			}
		},
	}
	cmd.Flags().StringVar(&formatFlag, "format", "table", "output format: table, yaml")
	return cmd
}
