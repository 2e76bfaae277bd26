package ports

import (
	"context"
)

// KVStore is a durable string key-value store.
type KVStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// KeyLister is implemented by stores that can enumerate keys with a prefix.
type KeyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}
