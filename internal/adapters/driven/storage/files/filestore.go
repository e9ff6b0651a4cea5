// Package files stores uploaded item bytes on the local filesystem
// under a per-space, per-item path. Writes go through a temporary
// file and rename, so readers see contents either whole or absent.
package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.FileStore = (*Store)(nil)

// Store persists uploaded bytes under root/files/<space_id>/<item_id>.<ext>.
type Store struct {
	root string
}

// NewStore creates a file store rooted at the given data directory.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("files: data directory cannot be empty")
	}
	root := filepath.Join(dataDir, "files")
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating files directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Save writes the bytes for an item and returns the storage path.
func (s *Store) Save(_ context.Context, spaceID, itemID, ext string, data []byte) (string, error) {
	if spaceID == "" || itemID == "" {
		return "", fmt.Errorf("%w: space and item ids are required", domain.ErrInvalidInput)
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: file extension is required", domain.ErrInvalidInput)
	}

	dir := filepath.Join(s.root, spaceID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating space directory: %w", err)
	}

	path := filepath.Join(dir, itemID+"."+ext)
	tmp, err := os.CreateTemp(dir, itemID+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("committing file: %w", err)
	}
	return path, nil
}

// Read returns the stored bytes for an item.
func (s *Store) Read(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes the stored bytes. A missing file is not an error.
func (s *Store) Delete(_ context.Context, path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// DeleteSpace removes every stored file for a space.
func (s *Store) DeleteSpace(_ context.Context, spaceID string) error {
	if spaceID == "" {
		return fmt.Errorf("%w: space id is required", domain.ErrInvalidInput)
	}
	if err := os.RemoveAll(filepath.Join(s.root, spaceID)); err != nil {
		return fmt.Errorf("deleting space files: %w", err)
	}
	return nil
}
