package am

// Config represents the vidmask configuration
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine" toml:"engine"`
	Resolver ResolverConfig `mapstructure:"resolver" toml:"resolver"`
	Watcher  WatcherConfig  `mapstructure:"watcher" toml:"watcher"`
	History  HistoryConfig  `mapstructure:"history" toml:"history"`
	Server   ServerConfig   `mapstructure:"server" toml:"server"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`
}

// EngineConfig selects the pipeline and initial modes of a segmentation engine
type EngineConfig struct {
	Pipeline         string `mapstructure:"pipeline" toml:"pipeline"`                   // portable-cpu, portable-gpu, accelerated-windows, accelerated-darwin
	MaskType         string `mapstructure:"mask_type" toml:"mask_type"`                 // uint8 or float32
	SegmentationMode string `mapstructure:"segmentation_mode" toml:"segmentation_mode"` // none or silhouette
	BlurMode         string `mapstructure:"blur_mode" toml:"blur_mode"`                 // none, light, strong
	Runtime          string `mapstructure:"runtime" toml:"runtime"`                     // registered portable runtime name
	TextureRuntime   string `mapstructure:"texture_runtime" toml:"texture_runtime"`     // registered accelerated runtime name
}

// ResolverConfig configures where tuning files and models are searched for
type ResolverConfig struct {
	Product     string `mapstructure:"product" toml:"product"`           // subdirectory name under the user config dir
	OverrideDir string `mapstructure:"override_dir" toml:"override_dir"` // empty = <UserConfigDir>/<product>
	ResourceDir string `mapstructure:"resource_dir" toml:"resource_dir"` // empty = <exe dir>/resources
}

// WatcherConfig configures tuning file hot reload
type WatcherConfig struct {
	Enabled                 bool `mapstructure:"enabled" toml:"enabled"`
	DebounceMS              int  `mapstructure:"debounce_ms" toml:"debounce_ms"`
	StatWarnIntervalSeconds int  `mapstructure:"stat_warn_interval_seconds" toml:"stat_warn_interval_seconds"`
}

// HistoryConfig configures the run history database
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled" toml:"enabled"`
	Path          string `mapstructure:"path" toml:"path"`                     // empty = ~/.vidmask/history.db
	RetentionDays int    `mapstructure:"retention_days" toml:"retention_days"` // 0 = keep forever
}

// ServerConfig configures `vidmask serve`
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" toml:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"` // prefix match; empty Origin header is always allowed
	MaxClients     int      `mapstructure:"max_clients" toml:"max_clients"`
}

// LogConfig configures log output
type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json"`
	Theme string `mapstructure:"theme" toml:"theme"` // everforest, gruvbox
}

// Accepted values for enumerated settings. The segment package owns the
// typed equivalents; these lists exist so validation does not depend on it.
var (
	ValidPipelines         = []string{"portable-cpu", "portable-gpu", "accelerated-windows", "accelerated-darwin"}
	ValidMaskTypes         = []string{"uint8", "float32"}
	ValidSegmentationModes = []string{"none", "silhouette"}
	ValidBlurModes         = []string{"none", "light", "strong"}
	ValidThemes            = []string{"everforest", "gruvbox"}
)

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)
