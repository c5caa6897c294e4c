package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/redactyl/leaktrace/internal/types"
)

// DefaultLogName is the run log written next to the report.
const DefaultLogName = ".leaktrace_audit.jsonl"

// RunRecord summarises one pipeline run.
type RunRecord struct {
	Timestamp        time.Time        `json:"timestamp"`
	RunID            string           `json:"run_id"`
	Entities         int              `json:"entities"`
	Accounts         int              `json:"accounts"`
	Repositories     int              `json:"repositories"`
	TotalFindings    int              `json:"total_findings"`
	NewFindings      int              `json:"new_findings"`
	BaselinedCount   int              `json:"baselined_count"`
	RuleCounts       map[string]int   `json:"rule_counts"`
	DiagnosticCounts map[string]int   `json:"diagnostic_counts,omitempty"`
	Duration         string           `json:"duration"`
	Report           string           `json:"report,omitempty"`
	BaselineFile     string           `json:"baseline_file,omitempty"`
	TopFindings      []FindingSummary `json:"top_findings,omitempty"`
	AllFindings      []types.Finding  `json:"all_findings,omitempty"`
}

type FindingSummary struct {
	Organization string `json:"organization"`
	Repository   string `json:"repository"`
	File         string `json:"file"`
	RuleID       string `json:"rule_id"`
	Line         int    `json:"line"`
}

// Log is an append-only JSONL file of run records.
type Log struct {
	path string
}

// NewLog returns a log at path, or DefaultLogName in dir when path is empty.
func NewLog(path, dir string) *Log {
	if path == "" {
		path = filepath.Join(dir, DefaultLogName)
	}
	return &Log{path: path}
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// History returns the recorded runs, newest first. Undecodable lines are
// skipped.
func (l *Log) History() ([]RunRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var records []RunRecord
	dec := json.NewDecoder(f)
	for dec.More() {
		var r RunRecord
		if err := dec.Decode(&r); err != nil {
			break
		}
		records = append(records, r)
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Append writes one record.
func (l *Log) Append(r RunRecord) error {
	if r.RunID == "" {
		r.RunID = fmt.Sprintf("run_%d", r.Timestamp.Unix())
	}
	// findings metadata stays owner-only
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(r); err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}
	return nil
}

// RunStats are the counters a record is built from.
type RunStats struct {
	Entities     int
	Accounts     int
	Repositories int
	Duration     time.Duration
	Report       string
	BaselineFile string
}

// NewRunRecord builds a record with secrets redacted.
func NewRunRecord(all, fresh []types.Finding, diags []types.Diagnostic, st RunStats) RunRecord {
	rules := map[string]int{}
	for _, f := range all {
		rules[f.RuleID]++
	}
	var kinds map[string]int
	for _, d := range diags {
		if kinds == nil {
			kinds = map[string]int{}
		}
		kinds[string(d.Kind)]++
	}

	top := make([]FindingSummary, 0, 10)
	for _, f := range fresh {
		if len(top) == 10 {
			break
		}
		top = append(top, FindingSummary{
			Organization: f.Organization,
			Repository:   f.Repository,
			File:         f.File,
			RuleID:       f.RuleID,
			Line:         f.StartLine,
		})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Organization < top[j].Organization })

	now := time.Now().UTC()
	return RunRecord{
		Timestamp:        now,
		RunID:            fmt.Sprintf("run_%d", now.UnixNano()),
		Entities:         st.Entities,
		Accounts:         st.Accounts,
		Repositories:     st.Repositories,
		TotalFindings:    len(all),
		NewFindings:      len(fresh),
		BaselinedCount:   len(all) - len(fresh),
		RuleCounts:       rules,
		DiagnosticCounts: kinds,
		Duration:         st.Duration.String(),
		Report:           st.Report,
		BaselineFile:     st.BaselineFile,
		TopFindings:      top,
		AllFindings:      redactSecrets(all),
	}
}

// redactSecrets keeps secret values out of the log.
func redactSecrets(findings []types.Finding) []types.Finding {
	out := make([]types.Finding, len(findings))
	for i, f := range findings {
		out[i] = f
		if f.Secret != "" {
			out[i].Secret = "[REDACTED]"
		}
		if f.Match != "" {
			out[i].Match = "[REDACTED]"
		}
	}
	return out
}
