package gitleaks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// ErrNotFound matches a missing gitleaks binary.
var ErrNotFound = errors.New("gitleaks binary not found")

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)

// Locate returns the binary to run. An explicit path must exist; otherwise
// gitleaks is looked up on $PATH.
func Locate(custom string) (string, error) {
	if custom != "" {
		info, err := os.Stat(custom)
		if err != nil || info.IsDir() {
			return "", fmt.Errorf("%w: %s", ErrNotFound, custom)
		}
		return custom, nil
	}
	path, err := exec.LookPath("gitleaks")
	if err != nil {
		return "", fmt.Errorf("%w in PATH", ErrNotFound)
	}
	return path, nil
}

// Version runs `gitleaks version` and returns the bare semantic version,
// e.g. "8.18.0".
func Version(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "version").Output()
	if err != nil {
		return "", fmt.Errorf("running %s version: %w", binary, err)
	}
	return ParseVersion(string(out))
}

// ParseVersion extracts the first x.y.z from version output.
func ParseVersion(out string) (string, error) {
	m := versionPattern.FindStringSubmatch(strings.TrimSpace(out))
	if m == nil {
		return "", fmt.Errorf("unrecognised gitleaks version output %q", strings.TrimSpace(out))
	}
	return m[1], nil
}
