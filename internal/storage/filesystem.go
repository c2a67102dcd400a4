package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore is the server's only durable store: per-user JSON documents and
// image files laid out under one data directory.
type FileStore struct {
	root string
}

// NewFileStore roots a store at dir, creating it when missing.
func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data directory: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// BasePath returns the data directory the store is rooted at.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.root
}

// Write persists data under the slash-separated key and returns the cleaned
// key actually used.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dest := s.path(k)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("storage: create parent directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", k, err)
	}
	return k, nil
}

func (s *FileStore) path(cleanedKey string) string {
	return filepath.Join(s.root, filepath.FromSlash(cleanedKey))
}

// cleanKey normalizes a storage key and rejects anything that would escape
// the data directory.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	cleaned := filepath.ToSlash(filepath.Clean(strings.TrimLeft(key, "/")))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("storage: key %q escapes the data directory", key)
	}
	return cleaned, nil
}
