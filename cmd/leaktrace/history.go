package leaktrace

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/redactyl/leaktrace/internal/audit"
)

var flagHistoryLimit int

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous runs from the audit log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			wd, _ := os.Getwd()
			runs, err := audit.NewLog(cfg.AuditLog, wd).History()
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			if flagHistoryLimit > 0 && len(runs) > flagHistoryLimit {
				runs = runs[:flagHistoryLimit]
			}
			t := tablewriter.NewWriter(out)
			t.Header("When", "Run", "People", "Repositories", "Findings", "New", "Duration")
			for _, r := range runs {
				if err := t.Append(
					r.Timestamp.Local().Format("2006-01-02 15:04"),
					r.RunID,
					strconv.Itoa(r.Entities),
					strconv.Itoa(r.Repositories),
					strconv.Itoa(r.TotalFindings),
					strconv.Itoa(r.NewFindings),
					r.Duration,
				); err != nil {
					return err
				}
			}
			return t.Render()
		},
	}
	cmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 10, "show at most this many runs (0 = all)")
	cmd.Flags().StringVar(&flagAuditLog, "audit-log", "", "run audit log (default: "+audit.DefaultLogName+")")
	rootCmd.AddCommand(cmd)
}
