package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/redactyl/leaktrace/internal/config"
	"github.com/redactyl/leaktrace/internal/people"
	"github.com/redactyl/leaktrace/internal/pipeline"
	"github.com/redactyl/leaktrace/internal/prereq"
	"github.com/redactyl/leaktrace/internal/rules"
	"github.com/redactyl/leaktrace/internal/types"
)

// Re-export selected internal types as a stable public API surface.
// These are type aliases so external consumers can depend on a stable path.
type Config = config.Config
type Entity = types.Entity
type Finding = types.Finding
type Diagnostic = types.Diagnostic
type Summary = pipeline.Summary

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config { return config.Defaults() }

// NewEntity creates a person record to resolve and audit.
func NewEntity(id, name, profile string) Entity { return types.NewEntity(id, name, profile) }

// LoadPeople reads a CSV or YAML people file.
func LoadPeople(path string) ([]Entity, error) { return people.Load(path) }

// RuleIDs lists the built-in detection rules.
func RuleIDs() []string {
	set := rules.Default()
	ids := make([]string, 0, len(set.Rules))
	for _, r := range set.Rules {
		ids = append(ids, r.ID)
	}
	return ids
}

// Run checks prerequisites, then resolves, enumerates, audits and
// consolidates. A nil logger discards logs. No files other than the
// temporary rule-set are written; reporting is left to the caller.
func Run(ctx context.Context, cfg Config, entities []Entity, log *zap.Logger) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	tools, err := prereq.New().Check(ctx, cfg.GitleaksBinary, cfg.GitleaksVersion, cfg.Scanner == config.ScannerNative)
	if err != nil {
		return Summary{}, err
	}
	comps, err := pipeline.Build(ctx, cfg, tools.Gitleaks, nil, log)
	if err != nil {
		return Summary{}, err
	}
	defer comps.Cleanup()
	return pipeline.NewFromComponents(comps, cfg, nil, log).Run(ctx, entities)
}
