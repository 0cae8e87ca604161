// Package repository defines data access interfaces for Leonidas Directory.
package repository

import (
	"context"
	"time"
)

// Cache defines the interface for counter/value caching, implemented by
// Redis for multi-node deployments and by an in-process map otherwise.
//
// The core never caches credentials or user records: every authorization
// check re-reads the store so revocations and password changes take
// effect immediately. The cache exists for transport-level concerns,
// currently request rate limiting.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Increment atomically increments an integer value, creating it at
	// delta if absent.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Expire sets or updates the TTL for a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Close releases cache resources.
	Close() error
}
