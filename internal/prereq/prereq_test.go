package prereq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(paths map[string]string, version string) *Checker {
	return &Checker{
		LookPath: func(name string) (string, error) {
			if p, ok := paths[name]; ok {
				return p, nil
			}
			return "", errors.New("not found")
		},
		Version: func(context.Context, string) (string, error) { return version, nil },
	}
}

func TestCheck(t *testing.T) {
	both := map[string]string{"git": "/usr/bin/git", "gitleaks": "/usr/bin/gitleaks"}
	tests := []struct {
		name    string
		paths   map[string]string
		version string
		want    string
		native  bool
		ok      bool
	}{
		{"all present", both, "8.18.0", "", false, true},
		{"no git", map[string]string{"gitleaks": "/x"}, "8.18.0", "", false, false},
		{"no gitleaks", map[string]string{"git": "/g"}, "", "", false, false},
		{"native needs only git", map[string]string{"git": "/g"}, "", "", true, true},
		{"too old", both, "7.6.1", "", false, false},
		{"pinned newer", both, "8.18.0", "v8.20.0", false, false},
		{"pinned older is floor", both, "8.1.0", "7.0.0", false, true},
		{"garbage version", both, "dev", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tools, err := checker(tt.paths, tt.version).Check(context.Background(), "", tt.want, tt.native)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrMissing)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, tools.Git)
		})
	}
}

func TestCheck_InvalidPinnedVersion(t *testing.T) {
	_, err := checker(map[string]string{"git": "g", "gitleaks": "l"}, "8.18.0").Check(context.Background(), "", "not-a-version", false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissing)
}

func TestCheck_ExplicitBinaryMustExist(t *testing.T) {
	_, err := checker(map[string]string{"git": "g"}, "8.18.0").Check(context.Background(), "/nonexistent/gitleaks", "", false)
	assert.ErrorIs(t, err, ErrMissing)
}
