package am

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/teranos/vidmask/errors"
)

// Default values
const (
	DefaultPipeline         = "portable-cpu"
	DefaultMaskType         = "uint8"
	DefaultSegmentationMode = "silhouette"
	DefaultBlurMode         = "none"
	DefaultRuntime          = "reference"
	DefaultTextureRuntime   = "native"
	DefaultProduct          = "vidmask"
	DefaultDebounceMS       = 250
	DefaultStatWarnSeconds  = 30
	DefaultTheme            = "everforest"
	DefaultServerAddr       = "127.0.0.1:8787"
	DefaultMaxClients       = 4
	DefaultRetentionDays    = 90
)

// DefaultAllowedOrigins are the websocket origins accepted out of the box
var DefaultAllowedOrigins = []string{"http://localhost", "https://localhost", "http://127.0.0.1"}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine.pipeline", DefaultPipeline)
	v.SetDefault("engine.mask_type", DefaultMaskType)
	v.SetDefault("engine.segmentation_mode", DefaultSegmentationMode)
	v.SetDefault("engine.blur_mode", DefaultBlurMode)
	v.SetDefault("engine.runtime", DefaultRuntime)
	v.SetDefault("engine.texture_runtime", DefaultTextureRuntime)

	v.SetDefault("resolver.product", DefaultProduct)
	v.SetDefault("resolver.override_dir", "")
	v.SetDefault("resolver.resource_dir", "")

	v.SetDefault("watcher.enabled", true)
	v.SetDefault("watcher.debounce_ms", DefaultDebounceMS)
	v.SetDefault("watcher.stat_warn_interval_seconds", DefaultStatWarnSeconds)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.allowed_origins", DefaultAllowedOrigins)
	v.SetDefault("server.max_clients", DefaultMaxClients)

	v.SetDefault("log.json", false)
	v.SetDefault("log.theme", DefaultTheme)
}

// BindEnvAliases binds short environment variable names used by packaging
// scripts, in addition to the automatic VIDMASK_<SECTION>_<KEY> form.
func BindEnvAliases(v *viper.Viper) {
	v.BindEnv("engine.pipeline", "VIDMASK_ENGINE_PIPELINE", "VIDMASK_PIPELINE")
	v.BindEnv("resolver.override_dir", "VIDMASK_RESOLVER_OVERRIDE_DIR", "VIDMASK_OVERRIDE_DIR")
	v.BindEnv("resolver.resource_dir", "VIDMASK_RESOLVER_RESOURCE_DIR", "VIDMASK_RESOURCE_DIR")
	v.BindEnv("log.theme", "VIDMASK_LOG_THEME")
	v.BindEnv("history.path", "VIDMASK_HISTORY_PATH", "VIDMASK_HISTORY_DB")
}

// Debounce returns the watcher debounce period (default 250ms)
func (c *Config) Debounce() time.Duration {
	if c.Watcher.DebounceMS <= 0 {
		return DefaultDebounceMS * time.Millisecond
	}
	return time.Duration(c.Watcher.DebounceMS) * time.Millisecond
}

// StatWarnInterval returns the minimum spacing between tuning file stat warnings
func (c *Config) StatWarnInterval() time.Duration {
	if c.Watcher.StatWarnIntervalSeconds <= 0 {
		return DefaultStatWarnSeconds * time.Second
	}
	return time.Duration(c.Watcher.StatWarnIntervalSeconds) * time.Second
}

// HistoryPath returns the history database path (default ~/.vidmask/history.db)
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return homedir.Expand(c.History.Path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".vidmask", "history.db"), nil
}

// GetLogTheme returns the log theme (default: everforest)
func (c *Config) GetLogTheme() string {
	if c.Log.Theme == "" {
		return DefaultTheme
	}
	return c.Log.Theme
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Engine: {Pipeline: %s, MaskType: %s, Runtime: %s}, Watcher: {Enabled: %t}}",
		c.Engine.Pipeline, c.Engine.MaskType, c.Engine.Runtime, c.Watcher.Enabled)
}
