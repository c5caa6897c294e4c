// Package config loads leaktrace configuration from local and global YAML
// files with precedence rules and resolves it into the single Config object
// handed to every component. CLI flags are layered on top by the command.
package config
