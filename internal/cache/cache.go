// Package cache provides a generic, invalidation-aware cache whose entry
// lifecycle is delegated to a pluggable policy.
//
// The cache owns its entries. The only read/write path is Fetch, which
// resolves the key from a query context and either builds a new entry or
// gives the policy a chance to refresh the existing one. Entries are never
// evicted individually; they disappear en masse through Invalidate, which
// lets the policy release every owned resource before the table is cleared.
//
// The cache is not internally synchronized. Callers in a multi-worker host
// rely on the enclosing transaction/lock manager for cross-worker safety.
package cache

import (
	"context"
	"errors"
)

// ErrClosed is returned by Fetch after the cache was invalidated without
// being re-readied, i.e. after shutdown.
var ErrClosed = errors.New("cache: closed")

// Policy supplies the entry lifecycle for a Cache instantiation.
//
// C is the query context handed to Fetch, K the key type, E the entry type.
// E is usually a pointer so UpdateEntry can refresh the entry in place.
type Policy[C any, K comparable, E any] interface {
	// KeyOf extracts the cache key from a query context.
	KeyOf(qc C) K

	// NewEntry builds the entry for a key seen for the first time. On error
	// no entry is inserted and the error surfaces from Fetch.
	NewEntry(ctx context.Context, qc C) (E, error)

	// UpdateEntry is called on every hit. It may return the entry unchanged
	// or rebuild part of it. On error the prior entry is kept as-is; the
	// policy must not leave it half-built.
	UpdateEntry(ctx context.Context, entry E, qc C) (E, error)

	// PreInvalidate receives every live entry before the table is cleared
	// and must release resources the entries own. An error aborts the
	// invalidation: nothing is cleared and no entry is treated as released.
	PreInvalidate(entries []E) error

	// PostInvalidate runs after the table was cleared. It reports whether
	// the cache should re-ready an empty table; returning false leaves the
	// cache closed (used during shutdown).
	PostInvalidate() bool
}

// Cache maps keys to policy-managed entries.
type Cache[C any, K comparable, E any] struct {
	policy   Policy[C, K, E]
	capacity int
	items    map[K]E
}

// New creates a ready, empty cache. capacity is a sizing hint only; the
// table grows as needed.
func New[C any, K comparable, E any](policy Policy[C, K, E], capacity int) *Cache[C, K, E] {
	if capacity <= 0 {
		capacity = 16
	}
	return &Cache[C, K, E]{
		policy:   policy,
		capacity: capacity,
		items:    make(map[K]E, capacity),
	}
}

// Fetch returns the entry for the query context's key, building it via the
// policy on a miss and refreshing it on a hit. Create/update failures
// propagate without mutating the table.
func (c *Cache[C, K, E]) Fetch(ctx context.Context, qc C) (E, error) {
	var zero E
	if c.items == nil {
		return zero, ErrClosed
	}

	key := c.policy.KeyOf(qc)
	if entry, ok := c.items[key]; ok {
		updated, err := c.policy.UpdateEntry(ctx, entry, qc)
		if err != nil {
			return zero, err
		}
		c.items[key] = updated
		return updated, nil
	}

	entry, err := c.policy.NewEntry(ctx, qc)
	if err != nil {
		return zero, err
	}
	c.items[key] = entry
	return entry, nil
}

// Invalidate releases every entry through the policy's PreInvalidate hook,
// clears the table, and re-readies it unless PostInvalidate declines.
func (c *Cache[C, K, E]) Invalidate() error {
	if c.items == nil {
		return nil
	}

	entries := make([]E, 0, len(c.items))
	for _, entry := range c.items {
		entries = append(entries, entry)
	}
	if err := c.policy.PreInvalidate(entries); err != nil {
		return err
	}

	c.items = nil
	if c.policy.PostInvalidate() {
		c.items = make(map[K]E, c.capacity)
	}
	return nil
}

// Len returns the number of live entries.
func (c *Cache[C, K, E]) Len() int {
	return len(c.items)
}
