package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Destination is where a successful render is materialized.
type Destination interface {
	// Location identifies the destination (a file path, or a label).
	Location() string

	// Write stores data atomically, replacing previous content.
	Write(data []byte) error

	// Remove deletes any stored content. Removing an empty destination is not an error.
	Remove() error
}

// FileDestination writes artifacts to a file path.
type FileDestination struct {
	path string
}

// NewFileDestination creates a destination for path.
func NewFileDestination(path string) *FileDestination {
	return &FileDestination{path: path}
}

// Location returns the file path.
func (d *FileDestination) Location() string { return d.path }

// Write writes data through a temporary file in the same directory and
// renames it into place, so readers never observe a partial artifact.
func (d *FileDestination) Write(data []byte) error {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// Remove deletes the file if it exists.
func (d *FileDestination) Remove() error {
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemoryDestination keeps the artifact in memory. It is safe for concurrent use.
type MemoryDestination struct {
	mu    sync.Mutex
	label string
	data  []byte
}

// NewMemoryDestination creates an in-memory destination identified by label.
func NewMemoryDestination(label string) *MemoryDestination {
	return &MemoryDestination{label: label}
}

// Location returns the destination label.
func (d *MemoryDestination) Location() string { return d.label }

// Write stores a copy of data.
func (d *MemoryDestination) Write(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = bytes.Clone(data)
	return nil
}

// Remove discards stored data.
func (d *MemoryDestination) Remove() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = nil
	return nil
}

// Bytes returns the stored artifact, or nil if empty.
func (d *MemoryDestination) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return bytes.Clone(d.data)
}

var (
	_ Destination = (*FileDestination)(nil)
	_ Destination = (*MemoryDestination)(nil)
)
