package leaktrace

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redactyl/leaktrace/internal/rules"
)

var flagRulesOutput string

func init() {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the built-in scanner rule-set as TOML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			set := rules.Default()
			if flagRulesOutput != "" {
				if err := set.Write(flagRulesOutput); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Wrote", flagRulesOutput)
				return nil
			}
			b, err := set.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().StringVarP(&flagRulesOutput, "output", "o", "", "write to this file instead of stdout")

	validate := &cobra.Command{
		Use:   "validate <rules.toml>",
		Short: "Check an external rule-set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := rules.Load(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules OK\n", args[0], len(set.Rules))
			return nil
		},
	}

	rootCmd.AddCommand(cmd)
	cmd.AddCommand(validate)
}
