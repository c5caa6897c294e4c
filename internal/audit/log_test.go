package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/leaktrace/internal/types"
)

func TestNewRunRecord_RedactsSecrets(t *testing.T) {
	all := []types.Finding{
		{Organization: "b", Repository: "r", RuleID: "openai-api-key", Secret: "sk-live", Match: "key=sk-live", File: "a"},
		{Organization: "a", Repository: "r", RuleID: "openai-api-key", Secret: "sk-2", File: "b"},
		{Organization: "a", Repository: "r", RuleID: "together-ai-api-key", Secret: "ff", File: "c"},
	}
	diags := []types.Diagnostic{{Kind: types.DiagCloneFailed}, {Kind: types.DiagCloneFailed}, {Kind: types.DiagRateLimited}}

	r := NewRunRecord(all, all[:2], diags, RunStats{Entities: 2, Repositories: 5, Duration: time.Second})

	assert.Equal(t, 3, r.TotalFindings)
	assert.Equal(t, 2, r.NewFindings)
	assert.Equal(t, 1, r.BaselinedCount)
	assert.Equal(t, map[string]int{"openai-api-key": 2, "together-ai-api-key": 1}, r.RuleCounts)
	assert.Equal(t, map[string]int{"CloneFailed": 2, "RateLimited": 1}, r.DiagnosticCounts)
	require.Len(t, r.TopFindings, 2)
	assert.Equal(t, "a", r.TopFindings[0].Organization)
	for _, f := range r.AllFindings {
		assert.Equal(t, "[REDACTED]", f.Secret)
		assert.NotContains(t, f.Match, "sk-")
	}
	assert.Equal(t, "sk-live", all[0].Secret, "input must not be mutated")
}

func TestLog_AppendAndHistory(t *testing.T) {
	dir := t.TempDir()
	l := NewLog("", dir)
	assert.Equal(t, filepath.Join(dir, DefaultLogName), l.Path())

	_, err := l.History()
	assert.Error(t, err)

	require.NoError(t, l.Append(RunRecord{RunID: "first", Timestamp: time.Unix(1, 0)}))
	require.NoError(t, l.Append(RunRecord{Timestamp: time.Unix(2, 0)}))

	hist, err := l.History()
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "run_2", hist[0].RunID)
	assert.Equal(t, "first", hist[1].RunID)

	info, err := os.Stat(l.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
