package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/kvsync/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeFile(t, "empty.toml", "")

	cfg, err := Load(LoadOptions{File: path})
	require.NoError(t, err)

	assert.Equal(t, DefaultStoreDir(), cfg.Store.Dir)
	assert.Equal(t, "", cfg.Storage.Prefix)
	assert.Equal(t, "auto", cfg.Output.Format)
	assert.Equal(t, 0, cfg.Log.Verbosity)
}

func TestLoad_TomlFile(t *testing.T) {
	path := writeFile(t, "config.toml", `
[store]
dir = "/srv/kvsync"

[storage]
prefix = "app:"

[output]
format = "json"
`)

	cfg, err := Load(LoadOptions{File: path})
	require.NoError(t, err)

	assert.Equal(t, "/srv/kvsync", cfg.Store.Dir)
	assert.Equal(t, "app:", cfg.Storage.Prefix)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoad_YamlFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
storage:
  prefix: "y-"
log:
  verbosity: 2
`)

	cfg, err := Load(LoadOptions{File: path})
	require.NoError(t, err)

	assert.Equal(t, "y-", cfg.Storage.Prefix)
	assert.Equal(t, 2, cfg.Log.Verbosity)
	assert.Equal(t, DefaultStoreDir(), cfg.Store.Dir)
}

func TestLoad_Layering(t *testing.T) {
	path := writeFile(t, "config.toml", `
[storage]
prefix = "file-"

[output]
format = "yaml"
`)
	t.Setenv("KVSYNC_STORAGE_PREFIX", "env-")
	t.Setenv("KVSYNC_LOG_VERBOSITY", "3")

	cfg, err := Load(LoadOptions{File: path})
	require.NoError(t, err)
	assert.Equal(t, "env-", cfg.Storage.Prefix, "env overrides file")
	assert.Equal(t, "yaml", cfg.Output.Format, "file overrides defaults")
	assert.Equal(t, 3, cfg.Log.Verbosity, "env strings are weakly typed")

	cfg, err = Load(LoadOptions{
		File:      path,
		Overrides: map[string]interface{}{"storage.prefix": "flag-"},
	})
	require.NoError(t, err)
	assert.Equal(t, "flag-", cfg.Storage.Prefix, "flags override env")
}

func TestLoad_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	path := writeFile(t, "config.toml", "[store]\ndir = \"~/kv\"\n")

	cfg, err := Load(LoadOptions{File: path})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "kv"), cfg.Store.Dir)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.toml")})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigLoad))
	})

	t.Run("unsupported_extension", func(t *testing.T) {
		path := writeFile(t, "config.ini", "x=1")
		_, err := Load(LoadOptions{File: path})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigLoad))
	})

	t.Run("malformed_toml", func(t *testing.T) {
		path := writeFile(t, "config.toml", "[store\n")
		_, err := Load(LoadOptions{File: path})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigLoad))
	})

	t.Run("negative_verbosity", func(t *testing.T) {
		path := writeFile(t, "config.toml", "[log]\nverbosity = -1\n")
		_, err := Load(LoadOptions{File: path})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	})
}

func TestGenerate(t *testing.T) {
	cfg := Default()
	cfg.Storage.Prefix = "p-"

	out, err := Generate(cfg)
	require.NoError(t, err)

	var back Config
	require.NoError(t, toml.Unmarshal([]byte(out), &back))
	assert.Equal(t, *cfg, back)
}

func TestGenerateConfigContent(t *testing.T) {
	content := GenerateConfigContent()

	assert.Contains(t, content, "[storage]")
	assert.Contains(t, content, `# prefix = ""`)
	assert.Contains(t, content, `# format = "auto"`)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "[") {
			continue
		}
		assert.True(t, strings.HasPrefix(trimmed, "#"), "line %q should be commented", line)
	}
}
