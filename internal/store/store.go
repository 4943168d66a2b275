// Package store abstracts the key-value backing store used for API key
// records, verification caches, issue caches, and GitHub App token caches.
//
// The interface is deliberately narrow (plain string values, hash values,
// and per-key TTL control) because every consumer relies only on the atomic
// single-key operations Redis guarantees (SetNX for the one-key-per-repo
// invariant, Del for one-time confirmation tokens). Two implementations are
// provided: Redis for deployments and an in-memory map for local development
// and tests. Components receive a Store explicitly at construction; there is
// no package-level client.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("store: key not found")

// Store is the key-value contract shared by all components.
//
// Semantics all implementations must honour:
//   - Get returns ErrNotFound for missing or expired keys.
//   - Set with ttl <= 0 stores the key without expiry.
//   - SetNX only writes when the key is absent and reports whether it did;
//     concurrent writers race at the store, not in the application.
//   - HGetAll returns an empty map (not an error) for missing keys.
//   - Expire/Persist attach and remove a TTL on an existing key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Persist(ctx context.Context, key string) error
}
