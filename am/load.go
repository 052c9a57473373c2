package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/vidmask/errors"
)

var (
	globalConfig  *Config
	viperInstance *viper.Viper
	loadMu        sync.Mutex

	// ConfigSources records which file supplied each flattened key during the
	// last cascade merge. Keys absent here came from defaults or environment.
	ConfigSources = map[string]SourceInfo{}
)

// EnvPrefix is the prefix for environment overrides (VIDMASK_ENGINE_PIPELINE etc.)
const EnvPrefix = "VIDMASK"

// Load reads the vidmask configuration using Viper
func Load() (*Config, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	config, err := LoadWithViper(initViperLocked())
	if err != nil {
		return nil, err
	}

	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	loadMu.Lock()
	defer loadMu.Unlock()
	return initViperLocked()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path, on top of
// defaults. Environment variables are not consulted.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config from %s", configPath)
	}
	return config, nil
}

// Reset clears the cached configuration (useful for testing and reload)
func Reset() {
	loadMu.Lock()
	defer loadMu.Unlock()
	globalConfig = nil
	viperInstance = nil
	ConfigSources = map[string]SourceInfo{}
}

func initViperLocked() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindEnvAliases(v)
	SetDefaults(v)

	ConfigSources = mergeConfigFiles(v, configCascade())

	viperInstance = v
	return v
}

// cascadeEntry is one candidate config file in precedence order
type cascadeEntry struct {
	path   string
	source ConfigSource
}

// configCascade lists config files lowest precedence first:
// system < user < project. Environment variables override all of them.
func configCascade() []cascadeEntry {
	entries := []cascadeEntry{
		{path: "/etc/vidmask/am.toml", source: SourceSystem},
	}
	if home, err := os.UserHomeDir(); err == nil {
		entries = append(entries, cascadeEntry{path: filepath.Join(home, ".vidmask", "am.toml"), source: SourceUser})
	}
	if project := findProjectConfig(); project != "" {
		entries = append(entries, cascadeEntry{path: project, source: SourceProject})
	}
	return entries
}

// ConfigFiles returns the cascade paths in precedence order, for `am where`.
func ConfigFiles() []string {
	var paths []string
	for _, e := range configCascade() {
		paths = append(paths, e.path)
	}
	return paths
}

// findProjectConfig walks up from the working directory looking for am.toml.
// Returns the first match, or empty string if none is found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		amPath := filepath.Join(dir, "am.toml")
		if _, err := os.Stat(amPath); err == nil {
			return amPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles merges existing files into v in order and returns the
// source of every key that was set. Later files win.
func mergeConfigFiles(v *viper.Viper, entries []cascadeEntry) map[string]SourceInfo {
	sources := map[string]SourceInfo{}
	seen := map[string]bool{}

	for _, e := range entries {
		if seen[e.path] {
			continue
		}
		seen[e.path] = true

		if _, err := os.Stat(e.path); err != nil {
			continue
		}

		tmp := viper.New()
		tmp.SetConfigFile(e.path)
		tmp.SetConfigType("toml")
		if err := tmp.ReadInConfig(); err != nil {
			continue
		}

		// MergeConfigMap keeps file values below environment overrides.
		if err := v.MergeConfigMap(tmp.AllSettings()); err != nil {
			continue
		}
		for _, key := range tmp.AllKeys() {
			sources[key] = SourceInfo{Source: e.source, Path: e.path}
		}
	}
	return sources
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	return GetViper().Get(key)
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	return GetViper().GetString(key)
}

// GetBool returns a configuration value as bool using dot notation
func GetBool(key string) bool {
	return GetViper().GetBool(key)
}

// GetInt returns a configuration value as int using dot notation
func GetInt(key string) int {
	return GetViper().GetInt(key)
}
