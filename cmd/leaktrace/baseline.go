package leaktrace

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redactyl/leaktrace/internal/cache"
	"github.com/redactyl/leaktrace/internal/report"
)

var flagBaselineOutput string

func init() {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage baselines",
	}

	update := &cobra.Command{
		Use:   "update",
		Short: "Update baseline from the last run's findings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			wd, _ := os.Getwd()
			last, err := cache.LoadResults(wd)
			if err != nil {
				return fmt.Errorf("no previous run to baseline (run 'leaktrace run' first): %w", err)
			}
			if err := report.SaveBaseline(flagBaselineOutput, last.Findings); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Baseline updated with %d findings from %s.\n", len(last.Findings), last.Timestamp.Format("2006-01-02 15:04"))
			return nil
		},
	}
	update.Flags().StringVarP(&flagBaselineOutput, "output", "o", defaultBaseline, "baseline file")

	rootCmd.AddCommand(cmd)
	cmd.AddCommand(update)
}
