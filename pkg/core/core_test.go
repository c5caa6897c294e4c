package core

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Concurrency = 0
	_, err := Run(context.Background(), cfg, nil, nil)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestRun_NoPeople(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("run needs git on PATH")
	}
	cfg := DefaultConfig()
	cfg.Scanner = "native"
	cfg.WorkDir = t.TempDir()
	sum, err := Run(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, sum.Findings)
	assert.Zero(t, sum.Accounts)
}

func TestRuleIDs(t *testing.T) {
	assert.Contains(t, RuleIDs(), "openai-api-key")
	assert.Len(t, RuleIDs(), 5)
}

func TestMarshalFindings_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarshalFindings(&buf, nil))
	assert.JSONEq(t, "[]", buf.String())

	fs, err := UnmarshalFindings(bytes.NewBufferString(`[{"organization":"o","person":"P","secret":"s","commit":"c","file":"f"}]`))
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "P", fs[0].Person)
}
