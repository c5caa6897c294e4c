// Package core provides a small, stable facade over leaktrace's internal
// pipeline for external integrations. It re-exports a narrow API surface so
// other tools can depend on a stable import path without importing internal
// packages.
//
// Example:
//
//	cfg := core.DefaultConfig()
//	cfg.Scanner = "native"
//	people, err := core.LoadPeople("people.csv")
//	if err != nil { /* handle */ }
//	sum, err := core.Run(ctx, cfg, people, nil)
//	if err != nil { /* handle */ }
//	_ = core.MarshalFindings(os.Stdout, sum.Findings)
package core
