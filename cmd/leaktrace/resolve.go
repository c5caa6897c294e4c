package leaktrace

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/redactyl/leaktrace/internal/people"
	"github.com/redactyl/leaktrace/internal/pipeline"
	"github.com/redactyl/leaktrace/internal/report"
)

var flagResolveJSON bool

func init() {
	cmd := &cobra.Command{
		Use:   "resolve <people-file>",
		Short: "Resolve homepages and accounts without auditing",
		Args:  cobra.ExactArgs(1),
		RunE:  runResolve,
	}
	rootCmd.AddCommand(cmd)
	addResolveFlags(cmd)
	cmd.Flags().BoolVar(&flagResolveJSON, "json", false, "emit JSON")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	entities, err := people.Load(args[0])
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openCache(cfg)
	if err != nil {
		log.Warn("resolution cache unreadable, starting empty", zap.Error(err))
	}
	platform, resolver := pipeline.BuildResolver(cfg, nil, log)
	opts := pipeline.Options{ResolveWorkers: cfg.ResolveWorkers, Platform: platform, Logger: log}
	if db != nil {
		opts.Cache = db
	}
	resolved, diags := pipeline.New(resolver, nil, nil, opts).Resolve(ctx, entities)
	if db != nil {
		if err := db.Save(); err != nil {
			log.Warn("saving resolution cache", zap.Error(err))
		}
	}

	out := cmd.OutOrStdout()
	if flagResolveJSON {
		return report.WriteJSON(out, resolved, nil, diags)
	}
	popts := report.PrintOptions{NoColor: colorDisabled(out)}
	if err := report.PrintResolutions(out, resolved, popts); err != nil {
		return err
	}
	if len(diags) > 0 {
		if err := report.PrintDiagnostics(cmd.ErrOrStderr(), diags, popts); err != nil {
			return err
		}
	}
	return ctx.Err()
}
