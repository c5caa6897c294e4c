// Package leaktrace provides the command-line interface for leaktrace. It
// wires configuration, the resolution and audit pipeline, and the report
// writers behind the run, resolve, rules, baseline, history and version
// subcommands.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/redactyl/leaktrace/cmd/leaktrace"
//	func main() { leaktrace.Execute() }
package leaktrace
