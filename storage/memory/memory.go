// Package memory provides the in-memory reference content store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/credverse/credverse-go/credential/common/canonical"
	"github.com/credverse/credverse-go/storage"
)

// Store is an in-memory content-addressed blob store keyed by the Keccak-256
// hex of the content.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New creates an empty store.
func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// Put stores the bytes and returns their content address.
func (s *Store) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	address := canonical.HashBytes(data).Hex()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[address]; !exists {
		stored := make([]byte, len(data))
		copy(stored, data)
		s.blobs[address] = stored
	}
	return address, nil
}

// Get returns the bytes stored under the content address.
func (s *Store) Get(ctx context.Context, address string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, address)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
