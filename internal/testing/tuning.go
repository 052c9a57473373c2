package testing

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// WriteTuningFile creates path (and its directory) on fs with content.
// The mtime is pinned so later Touch calls always move it forward.
func WriteTuningFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create tuning dir: %v", err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write tuning file: %v", err)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := fs.Chtimes(path, base, base); err != nil {
		t.Fatalf("Failed to set tuning file mtime: %v", err)
	}
}

// Touch moves path's mtime forward by d past its current value
func Touch(t *testing.T, fs afero.Fs, path string, d time.Duration) {
	t.Helper()
	info, err := fs.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat %s: %v", path, err)
	}
	next := info.ModTime().Add(d)
	if err := fs.Chtimes(path, next, next); err != nil {
		t.Fatalf("Failed to touch %s: %v", path, err)
	}
}
