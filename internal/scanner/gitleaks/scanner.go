// Package gitleaks runs the gitleaks binary over a cloned repository's
// history and reads back its JSON report.
package gitleaks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/redactyl/leaktrace/internal/scanner"
)

// ReportName is the file the report is written to inside the scratch dir.
const ReportName = "gitleaks-report.json"

// Scanner invokes gitleaks as a subprocess.
type Scanner struct {
	binary  string
	timeout time.Duration
	log     *zap.Logger
}

// New returns a scanner running binary. A zero timeout means no limit
// beyond the caller's context.
func New(binary string, timeout time.Duration, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{binary: binary, timeout: timeout, log: log}
}

// Name implements scanner.Scanner.
func (s *Scanner) Name() string { return "gitleaks" }

// Scan implements scanner.Scanner. Findings never change the exit code, so
// any non-zero exit is an invocation failure.
func (s *Scanner) Scan(ctx context.Context, req scanner.Request) ([]scanner.Record, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	reportPath := filepath.Join(req.Scratch, ReportName)
	args := []string{
		"detect",
		"--source", req.Source,
		"--report-path", reportPath,
		"--report-format", "json",
		"--exit-code", "0",
		"--no-banner",
	}
	if req.RulesPath != "" {
		args = append(args, "--config", req.RulesPath)
	}

	cmd := exec.CommandContext(ctx, s.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", scanner.ErrInvocation, ctxErr)
		}
		return nil, wrapError(err, stderr.String())
	}
	s.log.Debug("gitleaks finished",
		zap.String("source", req.Source),
		zap.Duration("elapsed", time.Since(start)))

	return scanner.ParseReport(reportPath)
}

func wrapError(err error, stderr string) error {
	msg := lastLine(stderr)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		hint := ""
		lower := strings.ToLower(stderr)
		switch {
		case strings.Contains(lower, ".toml"), strings.Contains(lower, "config"):
			hint = " (check the rule-set TOML)"
		case strings.Contains(lower, "permission denied"):
			hint = " (permission denied)"
		}
		return fmt.Errorf("%w: gitleaks exit code %d%s: %s", scanner.ErrInvocation, exitErr.ExitCode(), hint, msg)
	}
	return fmt.Errorf("%w: %v", scanner.ErrInvocation, err)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
