package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value is stored under a key
var ErrNotFound = errors.New("storage: key not found")

// Store is the key-value persistence the vault and session manager depend on.
// Values are opaque bytes; Keys enumerates stored keys sharing a prefix, sorted.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
