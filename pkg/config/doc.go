// Package config handles configuration management for kvsync.
// Values are layered: built-in defaults, then a TOML or YAML file, then
// KVSYNC_* environment variables, then command-line flags.
package config
