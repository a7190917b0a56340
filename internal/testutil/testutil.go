// Package testutil provides test helpers for lto2 tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// WriteFile creates a file with the given content in dir and returns its
// path. Parent directories are created as needed.
func WriteFile(t *testing.T, fs afero.Fs, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parent dirs for %s: %v", path, err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// MemFS returns an in-memory filesystem holding files, keyed by path.
func MemFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		WriteFile(t, fs, "", name, content)
	}
	return fs
}

// TempModules writes files into a fresh temporary directory on the OS
// filesystem and returns the directory.
func TempModules(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	fs := afero.NewOsFs()
	for name, content := range files {
		WriteFile(t, fs, dir, name, content)
	}
	return dir
}

// AssertMissing fails the test if any of paths exists in fs.
func AssertMissing(t *testing.T, fs afero.Fs, paths ...string) {
	t.Helper()
	for _, path := range paths {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if exists {
			t.Errorf("%s exists, want it missing", path)
		}
	}
}

// AssertExists fails the test if any of paths is missing from fs.
func AssertExists(t *testing.T, fs afero.Fs, paths ...string) {
	t.Helper()
	for _, path := range paths {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if !exists {
			t.Errorf("%s is missing", path)
		}
	}
}
