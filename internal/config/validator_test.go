package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestValidator_Validate(t *testing.T) {
	tests := []struct {
		name       string
		cfg        *Config
		wantFields []string
	}{
		{
			name: "defaults",
			cfg:  DefaultConfig(),
		},
		{
			name: "every level",
			cfg:  &Config{OptLevel: "0", CGOptLevel: "3", Threads: 16, CacheDir: "/tmp/lto2"},
		},
		{
			name: "unset fields are not checked",
			cfg:  &Config{},
		},
		{
			name:       "level out of range",
			cfg:        &Config{OptLevel: "4", CGOptLevel: "2"},
			wantFields: []string{"optLevel"},
		},
		{
			name:       "multi digit level",
			cfg:        &Config{OptLevel: "2", CGOptLevel: "22"},
			wantFields: []string{"cgOptLevel"},
		},
		{
			name:       "negative threads",
			cfg:        &Config{Threads: -1},
			wantFields: []string{"threads"},
		},
		{
			name:       "whitespace cache dir",
			cfg:        &Config{CacheDir: "  "},
			wantFields: []string{"cacheDir"},
		},
		{
			name:       "all reported in field order",
			cfg:        &Config{OptLevel: "x", CGOptLevel: "-1", Threads: -4, CacheDir: "\t"},
			wantFields: []string{"optLevel", "cgOptLevel", "threads", "cacheDir"},
		},
	}

	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.cfg)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			fields := make([]string, len(verrs))
			for i, e := range verrs {
				fields[i] = e.Field
			}
			assert.Equal(t, tt.wantFields, fields)
			assert.Contains(t, err.Error(), "config validation failed")
		})
	}
}

func TestValidator_LoadedFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("optLevel: 9\nthreads: -1\n"), 0o644))

	cfg, err := NewLoader().Load(configFile)
	require.NoError(t, err)

	err = newValidator(t).Validate(cfg.WithDefaults())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "optLevel: must be one of 0, 1, 2, 3")
	assert.Contains(t, err.Error(), "threads: must not be negative")
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "threads", Message: "must not be negative"}
	assert.Equal(t, "threads: must not be negative", err.Error())
	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
}
