// Package scanner defines the narrow interface between the audit
// orchestrator and a secret scanner, and the JSON report shape both
// scanner implementations produce.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/redactyl/leaktrace/internal/rules"
)

var (
	// ErrInvocation matches failures to run the scanner at all.
	ErrInvocation = errors.New("scanner invocation failed")
	// ErrParse matches scanner output that could not be decoded.
	ErrParse = errors.New("scanner output could not be parsed")
)

// Request describes one scan of a cloned repository.
type Request struct {
	// Source is the working tree of the clone.
	Source string
	// Scratch is a private directory the scanner may write its report to.
	Scratch string
	// RulesPath is the rule-set file rendered for the run.
	RulesPath string
	// Rules is the parsed form of RulesPath.
	Rules rules.Set
}

// Record is one raw scanner match, in the scanner's JSON report layout.
type Record struct {
	RuleID      string   `json:"RuleID"`
	Description string   `json:"Description"`
	StartLine   int      `json:"StartLine"`
	EndLine     int      `json:"EndLine"`
	Match       string   `json:"Match"`
	Secret      string   `json:"Secret"`
	File        string   `json:"File"`
	Commit      string   `json:"Commit"`
	Author      string   `json:"Author"`
	Email       string   `json:"Email"`
	Date        string   `json:"Date"`
	Message     string   `json:"Message"`
	Tags        []string `json:"Tags"`
}

// Scanner scans a repository with a rule-set.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]Record, error)
}

// ParseReport reads a JSON report file. A missing or empty report means the
// scanner found nothing.
func ParseReport(path string) ([]Record, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading report: %v", ErrParse, err)
	}
	return DecodeReport(b)
}

// DecodeReport decodes report bytes.
func DecodeReport(b []byte) ([]Record, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var recs []Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return recs, nil
}
