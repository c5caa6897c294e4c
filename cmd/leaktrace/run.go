package leaktrace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/redactyl/leaktrace/internal/audit"
	"github.com/redactyl/leaktrace/internal/cache"
	"github.com/redactyl/leaktrace/internal/config"
	"github.com/redactyl/leaktrace/internal/people"
	"github.com/redactyl/leaktrace/internal/pipeline"
	"github.com/redactyl/leaktrace/internal/prereq"
	"github.com/redactyl/leaktrace/internal/report"
	"github.com/redactyl/leaktrace/internal/types"
)

const defaultBaseline = "leaktrace.baseline.json"

var (
	flagConcurrency     int
	flagResolveWorkers  int
	flagCloneDepth      int
	flagScanner         string
	flagRules           string
	flagExclude         []string
	flagReport          string
	flagJSONOut         string
	flagSARIFOut        string
	flagBaseline        string
	flagCache           string
	flagNoCache         bool
	flagAuditLog        string
	flagNoAuditLog      bool
	flagGitleaks        string
	flagGitleaksVersion string
	flagRequestDelay    time.Duration
	flagScanTimeout     time.Duration
	flagNoHalt          bool
	flagFailOnFindings  bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "run <people-file>",
		Short: "Resolve people, audit their repositories and write the report",
		Args:  cobra.ExactArgs(1),
		RunE:  runAudit,
	}
	rootCmd.AddCommand(cmd)

	addResolveFlags(cmd)
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "repositories audited in parallel")
	cmd.Flags().IntVar(&flagCloneDepth, "clone-depth", 0, "clone depth (0 = full history)")
	cmd.Flags().StringVar(&flagScanner, "scanner", "", "scanner: gitleaks|native")
	cmd.Flags().StringVar(&flagRules, "rules", "", "external rule-set TOML (default: built-in LLM key rules)")
	cmd.Flags().StringSliceVar(&flagExclude, "exclude", nil, "glob of repository paths whose findings are dropped (repeatable)")
	cmd.Flags().StringVarP(&flagReport, "report", "o", "", "CSV report path")
	cmd.Flags().StringVar(&flagJSONOut, "json", "", "also write a JSON document to this path")
	cmd.Flags().StringVar(&flagSARIFOut, "sarif", "", "also write SARIF 2.1.0 to this path")
	cmd.Flags().StringVar(&flagBaseline, "baseline", defaultBaseline, "baseline file; findings listed there are not reported")
	cmd.Flags().StringVar(&flagAuditLog, "audit-log", "", "run audit log (default: "+audit.DefaultLogName+")")
	cmd.Flags().BoolVar(&flagNoAuditLog, "no-audit-log", false, "do not append a run record")
	cmd.Flags().StringVar(&flagGitleaks, "gitleaks", "", "path to the gitleaks binary")
	cmd.Flags().StringVar(&flagGitleaksVersion, "gitleaks-version", "", "minimum gitleaks version")
	cmd.Flags().DurationVar(&flagScanTimeout, "scan-timeout", 0, "time limit for one repository scan")
	cmd.Flags().BoolVar(&flagFailOnFindings, "fail-on-findings", false, "exit 1 when new findings are reported")
}

// addResolveFlags registers the flags shared by run and resolve.
func addResolveFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagResolveWorkers, "resolve-workers", 0, "people resolved in parallel")
	cmd.Flags().DurationVar(&flagRequestDelay, "request-delay", 0, "minimum interval between outbound requests")
	cmd.Flags().BoolVar(&flagNoHalt, "no-halt-on-best-guess", false, "keep trying strategies after a best-guess result")
	cmd.Flags().StringVar(&flagCache, "cache", "", "resolution cache file (default: "+cache.DefaultName+")")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "do not read or write the resolution cache")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	log, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tools, err := prereq.New().Check(ctx, cfg.GitleaksBinary, cfg.GitleaksVersion, cfg.Scanner == config.ScannerNative)
	if err != nil {
		log.Error("prerequisite check failed", zap.String("kind", string(types.DiagPrerequisite)), zap.Error(err))
		return err
	}
	log.Debug("prerequisites found",
		zap.String("git", tools.Git),
		zap.String("gitleaks", tools.Gitleaks),
		zap.String("gitleaks_version", tools.GitleaksVersion))

	entities, err := people.Load(args[0])
	if err != nil {
		return err
	}

	comps, err := pipeline.Build(ctx, cfg, tools.Gitleaks, nil, log)
	if err != nil {
		return err
	}
	defer comps.Cleanup()

	db, err := openCache(cfg)
	if err != nil {
		log.Warn("resolution cache unreadable, starting empty", zap.Error(err))
	}
	var c pipeline.Cache
	if db != nil {
		c = db
	}

	_, _ = fmt.Fprintf(stderr, "Auditing %d people with the %s scanner (%d rules)...\n", len(entities), comps.Scanner.Name(), len(comps.Rules.Rules))
	sum, runErr := pipeline.NewFromComponents(comps, cfg, c, log).Run(ctx, entities)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if db != nil {
		if err := db.Save(); err != nil {
			log.Warn("saving resolution cache", zap.Error(err))
		}
	}

	fresh := sum.Findings
	baselineUsed := ""
	if base, err := report.LoadBaseline(flagBaseline); err == nil {
		fresh = report.FilterNewFindings(sum.Findings, base)
		baselineUsed = flagBaseline
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warn("baseline ignored", zap.String("path", flagBaseline), zap.Error(err))
	}

	if err := report.WriteCSVFile(cfg.Report, fresh, comps.Platform); err != nil {
		return err
	}
	if err := writeExtras(sum, fresh, comps); err != nil {
		return err
	}

	opts := report.PrintOptions{
		NoColor:      colorDisabled(stdout),
		Duration:     sum.Duration,
		Entities:     len(sum.Entities),
		Repositories: sum.Repositories,
		Baselined:    len(sum.Findings) - len(fresh),
	}
	if err := report.PrintTable(stdout, fresh, opts); err != nil {
		return err
	}
	if len(sum.Diagnostics) > 0 {
		if err := report.PrintDiagnostics(stderr, sum.Diagnostics, opts); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintf(stderr, "Report written to %s\n", cfg.Report)

	wd, _ := os.Getwd()
	if !flagNoAuditLog {
		rec := audit.NewRunRecord(sum.Findings, fresh, sum.Diagnostics, audit.RunStats{
			Entities:     len(sum.Entities),
			Accounts:     sum.Accounts,
			Repositories: sum.Repositories,
			Duration:     sum.Duration,
			Report:       cfg.Report,
			BaselineFile: baselineUsed,
		})
		if err := audit.NewLog(cfg.AuditLog, wd).Append(rec); err != nil {
			log.Warn("appending audit log", zap.Error(err))
		}
	}
	if err := cache.SaveResults(wd, cfg.Report, sum.Findings); err != nil {
		log.Warn("saving last run", zap.Error(err))
	}

	if runErr != nil {
		return runErr
	}
	notifyUpdate(ctx, stderr)
	if flagFailOnFindings && len(fresh) > 0 {
		return findingsError{count: len(fresh)}
	}
	return nil
}

func openCache(cfg config.Config) (*cache.DB, error) {
	if flagNoCache {
		return nil, nil
	}
	path := cfg.Cache
	if path == "" {
		path = cache.DefaultName
	}
	return cache.Load(path)
}

func writeExtras(sum pipeline.Summary, fresh []types.Finding, comps *pipeline.Components) error {
	if flagJSONOut != "" {
		if err := writeFile(flagJSONOut, func(w io.Writer) error {
			return report.WriteJSON(w, sum.Entities, fresh, sum.Diagnostics)
		}); err != nil {
			return fmt.Errorf("json report: %w", err)
		}
	}
	if flagSARIFOut != "" {
		stats := map[string]int{
			"entities":     len(sum.Entities),
			"accounts":     sum.Accounts,
			"repositories": sum.Repositories,
			"diagnostics":  len(sum.Diagnostics),
			"baselined":    len(sum.Findings) - len(fresh),
		}
		if err := writeFile(flagSARIFOut, func(w io.Writer) error {
			return report.WriteSARIF(w, fresh, comps.Platform, version, stats)
		}); err != nil {
			return fmt.Errorf("sarif report: %w", err)
		}
	}
	return nil
}

// writeFile creates path owner-only; JSON output carries secrets.
func writeFile(path string, fn func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
