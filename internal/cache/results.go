package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/redactyl/leaktrace/internal/types"
)

// LastRunName is the file holding the most recent run's findings.
const LastRunName = ".leaktrace_last_run.json"

// RunResults stores the findings and metadata from a run.
type RunResults struct {
	Findings  []types.Finding `json:"findings"`
	Timestamp time.Time       `json:"timestamp"`
	Report    string          `json:"report"`
	Count     int             `json:"count"`
}

// SaveResults writes findings to dir. The file holds secrets and is owner-only.
func SaveResults(dir, report string, findings []types.Finding) error {
	results := RunResults{
		Findings:  findings,
		Timestamp: time.Now().UTC(),
		Report:    report,
		Count:     len(findings),
	}
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, LastRunName), b, 0o600)
}

// LoadResults loads the last run's findings from dir.
func LoadResults(dir string) (RunResults, error) {
	var results RunResults
	b, err := os.ReadFile(filepath.Join(dir, LastRunName))
	if err != nil {
		return results, err
	}
	if err := json.Unmarshal(b, &results); err != nil {
		return results, err
	}
	return results, nil
}
