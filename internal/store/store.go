// Package store implements the postings store: a mapping from an opaque key
// to a set of opaque members, behind one contract with three interchangeable
// backends. Local keeps the mapping in process memory, Redis and Postgres
// keep it on an external service so it can outlive the process and be shared
// between any number of indexes.
//
// Add-type operations are idempotent: inserting a (key, member) pair that is
// already present leaves the set unchanged. Reads of an absent key return an
// empty set, never an error. The stores perform no retry, caching, or
// fallback; every backend failure propagates to the caller.
package store

import (
	"context"
	"fmt"

	"github.com/arbazkhan002/datasketch/pkg/config"
	"github.com/arbazkhan002/datasketch/pkg/postgres"
	"github.com/arbazkhan002/datasketch/pkg/redis"
)

// Store is the postings store contract shared by all backends.
type Store interface {
	// Insert ensures member is part of the set stored under key.
	Insert(ctx context.Context, key, member string) error
	// Members returns the current set under key, empty if key was never
	// inserted. The returned slice is a copy; order is arbitrary.
	Members(ctx context.Context, key string) ([]string, error)
	// Has reports whether key has at least one member.
	Has(ctx context.Context, key string) (bool, error)
	// Remove deletes the whole set under key.
	Remove(ctx context.Context, key string) error
	// RemoveMember deletes one member from the set under key, dropping the
	// key entirely once its set is empty.
	RemoveMember(ctx context.Context, key, member string) error
	// Keys returns all keys that currently have at least one member.
	Keys(ctx context.Context) ([]string, error)
	// Size returns the number of keys with at least one member.
	Size(ctx context.Context) (int, error)
	// ItemCounts returns the set cardinality per key.
	ItemCounts(ctx context.Context) (map[string]int64, error)
	// NewBatch returns a write buffer for bulk insertion. Buffered entries
	// are not visible until Flush.
	NewBatch() Batch
	// Ping probes backend availability.
	Ping(ctx context.Context) error
	// Close releases the backend connection, if any.
	Close() error
}

// Batch buffers Insert calls and applies them in one backend round per
// Flush: a single lock acquisition for Local, a pipeline for Redis, a
// transaction for Postgres.
type Batch interface {
	Insert(key, member string)
	Flush(ctx context.Context) error
}

// Open constructs the store selected by cfg.Store.Backend, namespaced by
// prefix. Remote backends dial their service and verify connectivity before
// returning.
func Open(cfg *config.Config, prefix string) (Store, error) {
	switch cfg.Store.Backend {
	case config.BackendLocal:
		return NewLocal(), nil
	case config.BackendRedis:
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		return NewRedis(client, prefix), nil
	case config.BackendPostgres:
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		pg, err := NewPostgres(client, prefix)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
