// Package file provides a file-backed content store: one file per blob,
// named by content address, under a root directory.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/credverse/credverse-go/credential/common/canonical"
	"github.com/credverse/credverse-go/storage"
)

// Store is a file-backed content-addressed blob store.
type Store struct {
	root string
}

// Open creates or opens a blob store rooted at dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Put stores the bytes and returns their content address.
func (s *Store) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	address := canonical.HashBytes(data).Hex()
	path := s.pathFor(address)
	if _, err := os.Stat(path); err == nil {
		return address, nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to finalize blob: %w", err)
	}
	return address, nil
}

// Get returns the bytes stored under the content address.
func (s *Store) Get(ctx context.Context, address string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.pathFor(address))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, address)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

func (s *Store) pathFor(address string) string {
	return filepath.Join(s.root, address+".json")
}
