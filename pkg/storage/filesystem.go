// Package storage keeps rendered export files on local disk and issues the
// signed tokens that gate their download.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore writes and serves export files under one base directory. Names
// are always relative; anything trying to climb out of the base is rejected.
type FileStore struct {
	base string
}

// NewFileStore creates the base directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "./exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &FileStore{base: dir}, nil
}

// WriteFile stores data under the given relative name, creating intermediate
// directories.
func (s *FileStore) WriteFile(name string, data []byte) error {
	path, err := s.Abs(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *FileStore) Remove(name string) error {
	path, err := s.Abs(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove export file: %w", err)
	}
	return nil
}

// Abs resolves a relative name to an absolute path inside the base
// directory.
func (s *FileStore) Abs(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid export file name %q", name)
	}
	path := filepath.Join(s.base, filepath.Clean(name))
	rel, err := filepath.Rel(s.base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid export file name %q", name)
	}
	return path, nil
}

// Sweep deletes files whose modification time is older than ttl and prunes
// the per-job directories they leave empty. It returns the removed names.
func (s *FileStore) Sweep(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	var removed []string
	err := filepath.WalkDir(s.base, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		if rel, err := filepath.Rel(s.base, path); err == nil {
			removed = append(removed, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sweep exports: %w", err)
	}
	for _, name := range removed {
		dir := filepath.Dir(name)
		if dir == "." {
			continue
		}
		// Remove fails on non-empty directories, which is exactly the
		// check needed here.
		_ = os.Remove(filepath.Join(s.base, dir))
	}
	return removed, nil
}
