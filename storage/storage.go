// Package storage defines the content-addressed blob store used to persist
// metadata documents referenced by — but never hashed into — a credential's
// anchored digest.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no blob exists for a content address.
var ErrNotFound = errors.New("storage: blob not found")

// Store is a content-addressed put/get service. Put returns the content
// address of the stored bytes; storing the same bytes twice returns the same
// address.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, address string) ([]byte, error)
}
