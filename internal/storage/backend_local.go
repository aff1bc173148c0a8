package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// localBackend writes files under a directory on the local filesystem.
// basePath is resolved relative to storageRoot unless it's absolute,
// matching the "tmp" default the original storage manager falls back
// to when a device declares no base_path.
type localBackend struct {
	absBase string
}

func newLocalBackend(basePath, storageRoot string) *localBackend {
	if basePath == "" {
		basePath = "tmp"
	}
	abs := basePath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(storageRoot, basePath)
	}
	return &localBackend{absBase: filepath.Clean(abs)}
}

func (b *localBackend) Put(_ context.Context, relPath string, data []byte) (string, error) {
	fullPath := filepath.Join(b.absBase, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("%w: mkdir: %w", ErrWriteFailed, err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write: %w", ErrWriteFailed, err)
	}
	rel, err := filepath.Rel(b.absBase, fullPath)
	if err != nil {
		rel = relPath
	}
	return filepath.ToSlash(rel), nil
}
