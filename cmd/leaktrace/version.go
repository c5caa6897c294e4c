package leaktrace

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redactyl/leaktrace/internal/scanner/gitleaks"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the leaktrace version and the scanner it would use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "leaktrace %s\n", version)
			if bin, err := gitleaks.Locate(""); err == nil {
				if v, err := gitleaks.Version(cmd.Context(), bin); err == nil {
					_, _ = fmt.Fprintf(out, "gitleaks %s (%s)\n", v, bin)
				}
			} else {
				_, _ = fmt.Fprintln(out, "gitleaks not found; use --scanner native or install it")
			}
			notifyUpdate(cmd.Context(), cmd.ErrOrStderr())
			return nil
		},
	})
}
