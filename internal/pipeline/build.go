package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/redactyl/leaktrace/internal/audit"
	"github.com/redactyl/leaktrace/internal/config"
	"github.com/redactyl/leaktrace/internal/gitclone"
	"github.com/redactyl/leaktrace/internal/github"
	"github.com/redactyl/leaktrace/internal/resolve"
	"github.com/redactyl/leaktrace/internal/retry"
	"github.com/redactyl/leaktrace/internal/rules"
	"github.com/redactyl/leaktrace/internal/scanner"
	"github.com/redactyl/leaktrace/internal/scanner/gitleaks"
	"github.com/redactyl/leaktrace/internal/scanner/native"
	"github.com/redactyl/leaktrace/internal/search"
	"github.com/redactyl/leaktrace/internal/web"
	"github.com/redactyl/leaktrace/internal/workspace"
)

// Components are the production collaborators for one run.
type Components struct {
	Platform github.Platform
	Resolver *resolve.Resolver
	Lister   *github.Client
	Auditor  *audit.Orchestrator
	Scanner  scanner.Scanner
	Rules    rules.Set
	// Cleanup removes the generated rule-set file. Always non-nil.
	Cleanup func()
}

// Build assembles the components described by cfg. gitleaksBinary is the
// path prerequisite checking located; it is ignored by the native scanner.
// A single retry policy is shared so request pacing is global to the run.
func Build(ctx context.Context, cfg config.Config, gitleaksBinary string, hc *http.Client, log *zap.Logger) (*Components, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	policy := newPolicy(cfg, log)
	platform, resolver := buildResolver(cfg, policy, hc, log)
	lister := github.NewClient(ctx, github.Options{
		APIBase:    cfg.APIBaseURL,
		Token:      cfg.Token,
		PerPage:    cfg.PerPage,
		MaxPages:   cfg.MaxPages,
		Timeout:    cfg.RequestTimeout,
		UserAgent:  cfg.UserAgent,
		HTTPClient: hc,
	}, policy, log.Named("github"))

	var sc scanner.Scanner
	switch cfg.Scanner {
	case config.ScannerNative:
		sc = native.New(log.Named("scan"))
	case config.ScannerGitleaks, "":
		sc = gitleaks.New(gitleaksBinary, cfg.ScanTimeout, log.Named("scan"))
	default:
		return nil, fmt.Errorf("unknown scanner %q", cfg.Scanner)
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}
	rulesPath, set, cleanup, err := rules.Prepare(cfg.Rules, workDir)
	if err != nil {
		return nil, err
	}

	cloner := gitclone.New(gitclone.Options{
		Depth:   cfg.CloneDepth,
		Timeout: cfg.CloneTimeout,
		Token:   cfg.Token,
	}, log.Named("clone"))
	orch, err := audit.New(workspace.NewManager(workDir, log.Named("workspace")), cloner, sc, platform, audit.Options{
		RulesPath:    rulesPath,
		Rules:        set,
		ExcludePaths: cfg.ExcludePaths,
	}, log.Named("audit"))
	if err != nil {
		cleanup()
		return nil, err
	}

	return &Components{
		Platform: platform,
		Resolver: resolver,
		Lister:   lister,
		Auditor:  orch,
		Scanner:  sc,
		Rules:    set,
		Cleanup:  cleanup,
	}, nil
}

// BuildResolver assembles only the resolution stage.
func BuildResolver(cfg config.Config, hc *http.Client, log *zap.Logger) (github.Platform, *resolve.Resolver) {
	if log == nil {
		log = zap.NewNop()
	}
	return buildResolver(cfg, newPolicy(cfg, log), hc, log)
}

func newPolicy(cfg config.Config, log *zap.Logger) *retry.Policy {
	return retry.New(retry.Config{
		MaxAttempts:  cfg.MaxAttempts,
		Base:         cfg.BackoffBase,
		Max:          cfg.BackoffMax,
		RequestDelay: cfg.RequestDelay,
	}, log.Named("retry"))
}

func buildResolver(cfg config.Config, policy *retry.Policy, hc *http.Client, log *zap.Logger) (github.Platform, *resolve.Resolver) {
	platform := github.NewPlatform(cfg.PlatformHost, cfg.WebBaseURL)
	fetcher := web.New(hc, policy, cfg.RequestTimeout, web.WithUserAgent(cfg.UserAgent))
	return platform, resolve.NewResolver(resolve.Settings{
		Options: resolve.Options{
			HaltOnBestGuess: cfg.HaltOnBestGuess,
			StrategyTimeout: cfg.RequestTimeout * 2,
			Logger:          log.Named("resolve"),
		},
		Fetcher:       fetcher,
		Engine:        search.NewHTMLEngine(fetcher, cfg.SearchURL),
		Platform:      platform,
		HomepageQuery: cfg.HomepageQuery,
		AccountQuery:  cfg.AccountQuery,
		HomepageID:    cfg.ProfileHomepageID,
	})
}

// NewFromComponents wires a pipeline around c.
func NewFromComponents(c *Components, cfg config.Config, cache Cache, log *zap.Logger) *Pipeline {
	return New(c.Resolver, c.Lister, c.Auditor, Options{
		Concurrency:    cfg.Concurrency,
		ResolveWorkers: cfg.ResolveWorkers,
		Platform:       c.Platform,
		Cache:          cache,
		Logger:         log,
	})
}
