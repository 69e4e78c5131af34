// Package kv is the key-value store sessions and notices are kept in. Every
// key carries its own TTL and expiry is enforced by the store.
package kv

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	// Get returns ErrNotFound for absent or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
