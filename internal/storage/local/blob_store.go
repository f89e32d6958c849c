// Package local persists corpus artifacts and operator settings on the local
// filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem stores.
type Config struct {
	// BaseDir is the root directory for every file written.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes artifacts to the local filesystem.
type BlobStore struct {
	baseDir string
}

// New creates a local filesystem-backed blob store.
func New(cfg Config) (*BlobStore, error) {
	dir, err := prepareDir(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	return &BlobStore{baseDir: dir}, nil
}

// PutObject writes data under the base directory and returns a file:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	fullPath, err := within(s.baseDir, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	if err := writeFileAtomic(fullPath, byteData); err != nil {
		return "", err
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}

// prepareDir creates dir when missing and proves it is writable.
func prepareDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return "", fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return "", fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return "", fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(dir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return "", fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return "", fmt.Errorf("failed to clean up test file: %w", err)
	}
	return filepath.Clean(dir), nil
}

// within joins rel onto base and rejects paths escaping base.
func within(base, rel string) (string, error) {
	full := filepath.Clean(filepath.Join(base, rel))
	if !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return full, nil
}

// writeFileAtomic replaces path so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}
