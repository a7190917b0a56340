package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/opmodel/lto2/internal/errors"
)

// isolateConfig points the config loader at a file that does not exist.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("LTO2_CONFIG", filepath.Join(t.TempDir(), "config.yaml"))
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolateConfig(t)

	root := NewRootCmd()
	var stderr bytes.Buffer
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stderr.String(), err
}

func TestNewRootCmd(t *testing.T) {
	root := NewRootCmd()

	assert.Equal(t, "lto2", root.Use)
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run", "dump-symtab", "version"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestRoot_NoOrUnknownSubcommand(t *testing.T) {
	for name, args := range map[string][]string{
		"none":    nil,
		"unknown": {"link", "a.bc"},
	} {
		t.Run(name, func(t *testing.T) {
			stderr, err := executeRoot(t, args...)
			require.Error(t, err)
			assert.Equal(t, availableSubcommands+"\n", stderr)
			assert.Equal(t, oerrors.ExitGeneralError, oerrors.ExitCodeFromError(err))

			var exitErr *oerrors.ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.True(t, exitErr.Printed)
		})
	}
}

func TestRoot_ConfigFileIsLoaded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("optLevel: \"1\"\ncacheDir: /tmp/lto2-cache\n"), 0o644))

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", path, "version"})
	require.NoError(t, root.Execute())

	cfg := GetConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "1", cfg.OptLevel)
	assert.Equal(t, "/tmp/lto2-cache", cfg.CacheDir)
}

func TestVersionCmd_Execute(t *testing.T) {
	_, err := executeRoot(t, "version")
	assert.NoError(t, err)
}
