package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Environment variable prefix for lto2 configuration.
const envPrefix = "LTO2"

// Environment variables bound to configuration keys.
const (
	EnvConfig     = "LTO2_CONFIG"
	EnvOptLevel   = "LTO2_OPT_LEVEL"
	EnvCGOptLevel = "LTO2_CG_OPT_LEVEL"
	EnvCacheDir   = "LTO2_CACHE_DIR"
	EnvThreads    = "LTO2_THREADS"
)

// Loader handles loading and merging configuration from the config file and
// the environment.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("optLevel", EnvOptLevel)
	_ = v.BindEnv("cgOptLevel", EnvCGOptLevel)
	_ = v.BindEnv("cacheDir", EnvCacheDir)
	_ = v.BindEnv("threads", EnvThreads)

	return &Loader{v: v}
}

// Load loads configuration from configFile. An empty configFile selects
// the default path. A missing file is not an error. Environment variables
// take precedence over file values.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile == "" {
		var err error
		configFile, err = GetConfigFile()
		if err != nil {
			return nil, fmt.Errorf("getting config file path: %w", err)
		}
	}

	expandedPath, err := ExpandPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}

	l.v.SetConfigFile(expandedPath)
	l.v.SetConfigType("yaml")

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
