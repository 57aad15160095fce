// Package kv is the key/value persistence behind the local draft store: the
// Go stand-in for browser local storage.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get for absent keys.
	ErrNotFound = errors.New("kv: key not found")
	// ErrQuotaExceeded is returned by Set when the store is full.
	ErrQuotaExceeded = errors.New("kv: quota exceeded")
)

// Store is a string key/value store. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Lister is implemented by stores that can enumerate keys with a prefix.
// draftctl uses it to find suppression markers.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}
