package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Config is the resolved configuration of the kvsync command.
type Config struct {
	Store   StoreConfig   `koanf:"store" toml:"store" yaml:"store"`
	Storage StorageConfig `koanf:"storage" toml:"storage" yaml:"storage"`
	Output  OutputConfig  `koanf:"output" toml:"output" yaml:"output"`
	Log     LogConfig     `koanf:"log" toml:"log" yaml:"log"`
}

// StoreConfig locates the directory-backed store.
type StoreConfig struct {
	Dir string `koanf:"dir" toml:"dir" yaml:"dir"`
}

// StorageConfig scopes the storage view.
type StorageConfig struct {
	Prefix string `koanf:"prefix" toml:"prefix" yaml:"prefix"`
}

// OutputConfig selects how results are printed.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format" yaml:"format"`
}

// LogConfig sets the log verbosity.
type LogConfig struct {
	Verbosity int `koanf:"verbosity" toml:"verbosity" yaml:"verbosity"`
}

// DefaultStoreDir is where items live unless configured otherwise.
func DefaultStoreDir() string {
	return filepath.Join(xdg.DataHome, "kvsync", "store")
}

// DefaultConfigPath is the config file read when none is given.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "kvsync", "config.toml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store:  StoreConfig{Dir: DefaultStoreDir()},
		Output: OutputConfig{Format: "auto"},
	}
}
