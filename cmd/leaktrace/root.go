package leaktrace

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig        string
	flagLogLevel      string
	flagLogFormat     string
	flagNoColor       bool
	flagToken         string
	flagWorkDir       string
	flagNoUpdateCheck bool
	flagSelfUpdate    bool

	version = "0.1.0"
)

// rootCmd is the base Cobra command for the leaktrace CLI.
var rootCmd = &cobra.Command{
	Use:   "leaktrace",
	Short: "Find leaked LLM API keys in people's public repositories",
	Long: "leaktrace resolves each person in a list to a personal homepage and a code-hosting " +
		"account, audits the account's public repositories for leaked LLM provider keys, " +
		"and writes a consolidated report.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if flagSelfUpdate {
			if err := selfUpdate(); err != nil {
				return fmt.Errorf("self-update: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "updated to latest; re-run command")
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the leaktrace CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .leaktrace.yml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: console|structured")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "hosting platform API token (default: $GITHUB_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&flagWorkDir, "work-dir", "", "directory for clones and the generated rule-set (default: system temp)")
	rootCmd.PersistentFlags().BoolVar(&flagNoUpdateCheck, "no-update-check", false, "disable update check")
	rootCmd.Flags().BoolVar(&flagSelfUpdate, "self-update", false, "update leaktrace to the latest release")
}
