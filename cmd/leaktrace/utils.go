package leaktrace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	semver3 "github.com/blang/semver"
	semver "github.com/blang/semver/v4"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/redactyl/leaktrace/internal/config"
	"github.com/redactyl/leaktrace/internal/logging"
	"github.com/redactyl/leaktrace/internal/prereq"
	"github.com/redactyl/leaktrace/internal/update"
)

func selfUpdate() error {
	v := version
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(v) == 0 {
				v = s.Value
			}
		}
	}
	ver, err := semver.ParseTolerant(v)
	if err != nil {
		ver = semver.MustParse("0.0.0")
	}
	_, err = selfupdate.UpdateSelf(semver3.MustParse(ver.String()), update.Repository)
	return err
}

// findingsError fails a run that reported new findings under
// --fail-on-findings. The report has already been written.
type findingsError struct {
	count int
}

func (e findingsError) Error() string {
	return fmt.Sprintf("%d new findings reported", e.count)
}

// exitCode maps a command error onto the process status: 1 for new findings
// under --fail-on-findings, 3 for a missing prerequisite, 130 for an
// interrupted run and 2 otherwise.
func exitCode(err error) int {
	var fe findingsError
	switch {
	case errors.As(err, &fe):
		return 1
	case errors.Is(err, prereq.ErrMissing):
		return 3
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 2
	}
}

// loadConfig layers flags over the local file over the global file over the
// defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	gcfg, err := config.LoadGlobal()
	if err != nil && !errors.Is(err, config.ErrNoConfig) {
		return config.Config{}, err
	}
	var lcfg config.FileConfig
	if flagConfig != "" {
		lcfg, err = config.LoadFile(flagConfig)
	} else {
		wd, _ := os.Getwd()
		lcfg, err = config.LoadLocal(wd)
		if errors.Is(err, config.ErrNoConfig) {
			err = nil
		}
	}
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Resolve(gcfg, lcfg)
	if err != nil {
		return cfg, err
	}
	applyFlags(cmd, &cfg)
	cfg.Token = pickString(flagToken, os.Getenv("GITHUB_TOKEN"))
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags copies every flag the user set onto cfg. Flags not registered
// on cmd are never Changed.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	str := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	num := func(name string, dst *int, v int) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration, v time.Duration) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	str("log-level", &cfg.LogLevel, flagLogLevel)
	str("log-format", &cfg.LogFormat, flagLogFormat)
	str("work-dir", &cfg.WorkDir, flagWorkDir)
	str("scanner", &cfg.Scanner, flagScanner)
	str("rules", &cfg.Rules, flagRules)
	str("report", &cfg.Report, flagReport)
	str("cache", &cfg.Cache, flagCache)
	str("audit-log", &cfg.AuditLog, flagAuditLog)
	str("gitleaks", &cfg.GitleaksBinary, flagGitleaks)
	str("gitleaks-version", &cfg.GitleaksVersion, flagGitleaksVersion)
	num("concurrency", &cfg.Concurrency, flagConcurrency)
	num("resolve-workers", &cfg.ResolveWorkers, flagResolveWorkers)
	num("clone-depth", &cfg.CloneDepth, flagCloneDepth)
	dur("request-delay", &cfg.RequestDelay, flagRequestDelay)
	dur("scan-timeout", &cfg.ScanTimeout, flagScanTimeout)
	if fs.Changed("exclude") {
		cfg.ExcludePaths = append(cfg.ExcludePaths, flagExclude...)
	}
	if fs.Changed("no-halt-on-best-guess") {
		cfg.HaltOnBestGuess = !flagNoHalt
	}
}

func pickString(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func newLogger(cfg config.Config, w io.Writer) (*zap.Logger, error) {
	return logging.NewFactory(w).Build(logging.Level(cfg.LogLevel), logging.Format(cfg.LogFormat))
}

// colorDisabled reports whether styled output should be suppressed for w.
func colorDisabled(w io.Writer) bool {
	if flagNoColor || os.Getenv("NO_COLOR") != "" {
		return true
	}
	f, ok := w.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

// notifyUpdate prints a one-line notice when a newer release exists.
func notifyUpdate(ctx context.Context, w io.Writer) {
	if flagNoUpdateCheck {
		return
	}
	if latest, newer, _ := update.NewChecker().Check(ctx, version, false); newer && latest != "" {
		_, _ = fmt.Fprintf(w, "(new version available: v%s)  run 'leaktrace --self-update' to upgrade\n", latest)
	}
}
