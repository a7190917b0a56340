// Package config provides configuration loading and management.
package config

// LogConfig contains logging-related settings.
type LogConfig struct {
	// Timestamps controls whether timestamps are shown in log output.
	// Default: off. --verbose always turns them on.
	Timestamps *bool `mapstructure:"timestamps"`
}

// Config represents the lto2 configuration file.
// Loaded from ~/.lto2/config.yaml; every key can also be set through an
// LTO2_-prefixed environment variable.
type Config struct {
	// OptLevel is the default optimization level (0-3).
	// Env: LTO2_OPT_LEVEL, Default: 2
	OptLevel string `mapstructure:"optLevel"`

	// CGOptLevel is the default codegen optimization level (0-3).
	// Env: LTO2_CG_OPT_LEVEL, Default: 2
	CGOptLevel string `mapstructure:"cgOptLevel"`

	// CacheDir enables the object cache for every run when set.
	// Env: LTO2_CACHE_DIR
	CacheDir string `mapstructure:"cacheDir"`

	// Threads is the ThinLTO backend worker count. Zero selects the host
	// estimate.
	// Env: LTO2_THREADS
	Threads int `mapstructure:"threads"`

	// Log contains logging-related settings.
	Log LogConfig `mapstructure:"log"`
}

// Default levels, matching the usual -O2 link.
const (
	DefaultOptLevel   = "2"
	DefaultCGOptLevel = "2"
)

// DefaultConfig returns a Config with all default values populated.
func DefaultConfig() *Config {
	return &Config{
		OptLevel:   DefaultOptLevel,
		CGOptLevel: DefaultCGOptLevel,
	}
}

// WithDefaults returns a copy of c with unset fields filled from
// DefaultConfig.
func (c *Config) WithDefaults() *Config {
	out := *c
	def := DefaultConfig()
	if out.OptLevel == "" {
		out.OptLevel = def.OptLevel
	}
	if out.CGOptLevel == "" {
		out.CGOptLevel = def.CGOptLevel
	}
	return &out
}
