package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/arthur-debert/kvsync/pkg/errors"
	"github.com/arthur-debert/kvsync/pkg/logging"
)

var log = logging.GetLogger("config")

// EnvPrefix prefixes environment overrides, e.g. KVSYNC_STORAGE_PREFIX.
const EnvPrefix = "KVSYNC_"

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// File is an explicit config file. It must exist. When empty the
	// default location is used if present.
	File string
	// Overrides are applied last, keyed by dotted path ("storage.prefix").
	Overrides map[string]interface{}
}

// Load resolves the configuration from every layer.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	// 1. Built-in defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"store.dir": DefaultStoreDir(),
	}, "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load computed defaults")
	}

	// 2. Config file
	path := opts.File
	if path == "" {
		if _, err := os.Stat(DefaultConfigPath()); err == nil {
			path = DefaultConfigPath()
		}
	}
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load config from %s", path)
		}
		log.Debug().Str("path", path).Msg("Loaded config file")
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment")
	}

	// 4. Flags
	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to apply overrides")
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				expandHomeHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parserFor picks the parser from the file extension.
func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, errors.Newf(errors.ErrConfigLoad, "unsupported config file type %q", filepath.Ext(path)).
			WithDetail("path", path)
	}
}

// envKey maps KVSYNC_STORAGE_PREFIX to storage.prefix.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

// expandHomeHookFunc expands a leading ~/ in string values.
func expandHomeHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.String {
			return data, nil
		}
		s, _ := data.(string)
		if !strings.HasPrefix(s, "~/") {
			return data, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return data, nil
		}
		return filepath.Join(home, s[2:]), nil
	}
}

func validate(cfg *Config) error {
	if cfg.Store.Dir == "" {
		return errors.New(errors.ErrInvalidInput, "store.dir must not be empty")
	}
	if cfg.Log.Verbosity < 0 {
		return errors.Newf(errors.ErrInvalidInput, "log.verbosity must not be negative, got %d", cfg.Log.Verbosity)
	}
	return nil
}
