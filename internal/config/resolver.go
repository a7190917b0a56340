package config

import (
	"os"
	"strconv"

	"github.com/opmodel/lto2/internal/output"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	// SourceFlag indicates value came from command-line flag.
	SourceFlag ConfigSource = "flag"
	// SourceEnv indicates value came from environment variable.
	SourceEnv ConfigSource = "env"
	// SourceConfig indicates value came from config file.
	SourceConfig ConfigSource = "config"
	// SourceDefault indicates value is the built-in default.
	SourceDefault ConfigSource = "default"
)

// ResolvedValue records the value chosen for one setting.
type ResolvedValue struct {
	Key    string
	Value  string
	Source ConfigSource
}

// FlagValue is a command-line flag and whether the user set it.
type FlagValue struct {
	Value   string
	Changed bool
}

// ResolveRunOptions contains the run flags that have configuration
// fallbacks.
type ResolveRunOptions struct {
	OptLevel   FlagValue
	CGOptLevel FlagValue
	CacheDir   FlagValue
	Threads    FlagValue

	// Config is the loaded configuration (may be nil).
	Config *Config

	// HostThreads is the default worker count.
	HostThreads int
}

// ResolvedRun holds the resolved run settings.
type ResolvedRun struct {
	OptLevel   ResolvedValue
	CGOptLevel ResolvedValue
	CacheDir   ResolvedValue
	Threads    ResolvedValue
}

// Values returns the resolved settings in a fixed order.
func (r ResolvedRun) Values() []ResolvedValue {
	return []ResolvedValue{r.OptLevel, r.CGOptLevel, r.CacheDir, r.Threads}
}

// ResolveRun resolves each setting with precedence
// flag > env > config file > default.
func ResolveRun(opts ResolveRunOptions) ResolvedRun {
	cfg := opts.Config
	if cfg == nil {
		cfg = &Config{}
	}

	threads := ""
	if cfg.Threads > 0 {
		threads = strconv.Itoa(cfg.Threads)
	}

	return ResolvedRun{
		OptLevel:   resolve("optLevel", opts.OptLevel, EnvOptLevel, cfg.OptLevel, DefaultOptLevel),
		CGOptLevel: resolve("cgOptLevel", opts.CGOptLevel, EnvCGOptLevel, cfg.CGOptLevel, DefaultCGOptLevel),
		CacheDir:   resolve("cacheDir", opts.CacheDir, EnvCacheDir, cfg.CacheDir, ""),
		Threads:    resolve("threads", opts.Threads, EnvThreads, threads, strconv.Itoa(opts.HostThreads)),
	}
}

// resolve picks the flag if the user set it, then the loaded config value
// (which already includes the environment, reported as SourceEnv when the
// variable is set), then the default.
func resolve(key string, flag FlagValue, envName, configValue, def string) ResolvedValue {
	switch {
	case flag.Changed:
		return ResolvedValue{Key: key, Value: flag.Value, Source: SourceFlag}
	case configValue != "":
		source := SourceConfig
		if os.Getenv(envName) != "" {
			source = SourceEnv
		}
		return ResolvedValue{Key: key, Value: configValue, Source: source}
	default:
		return ResolvedValue{Key: key, Value: def, Source: SourceDefault}
	}
}

// LogResolvedValues logs configuration resolution at DEBUG level.
func LogResolvedValues(values []ResolvedValue) {
	for _, v := range values {
		output.Debug("config value resolved",
			"key", v.Key,
			"value", v.Value,
			"source", v.Source,
		)
	}
}
