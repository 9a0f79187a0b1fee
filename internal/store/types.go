package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Storage is the cache backend for short-lived server state: ceremony
// state records and failed-attempt counters. Implementations treat a
// non-positive expiresIn as "no expiry".
type Storage interface {
	Get(ctx context.Context, key string, val any) error
	Set(ctx context.Context, key string, val any, expiresIn time.Duration) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, expiresAt time.Time) error
	IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error)
}

// Store is a typed, key-prefixed view over a Storage.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, val T, expiresIn time.Duration) error
	Delete(ctx context.Context, key string) error
}
