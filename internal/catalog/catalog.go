// Package catalog defines chunk metadata rows and the lookup that resolves
// the chunk covering a probe point, creating one when none exists.
//
// The storage contract is deliberately thin: stores provide an indexed scan
// over a partition's chunk rows, row creation with uniqueness enforcement,
// and target-table resolution. Genuine atomicity for find-or-create is the
// store's responsibility; the optional share-mode row lock taken during a
// scan is a cooperative hint against create-create races, not a guarantee.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/electwix/chunkplan/internal/hypertable"
)

// ErrChunkOverlap reports that more than one chunk covers the same probe
// point for a partition. Ranges are required to be non-overlapping, so this
// is an invariant violation, not a recoverable condition.
var ErrChunkOverlap = errors.New("catalog: overlapping chunk ranges")

// Chunk is one chunk metadata row. Identity is stable for the chunk's
// lifetime; the validity range may be changed by external catalog
// operations, which is what makes cached plans stale.
type Chunk struct {
	ID          int32
	PartitionID int32
	StartTime   int64
	EndTime     int64
}

// Range returns the chunk's validity range.
func (c Chunk) Range() hypertable.Range {
	return hypertable.Range{Start: c.StartTime, End: c.EndTime}
}

// Store is the relational storage contract chunkplan consumes.
type Store interface {
	// ScanChunks visits every chunk row of the partition in start-time
	// order. When lock is set the store holds a share-mode row lock for
	// the duration of the scan where it supports one. The visit callback's
	// error aborts the scan and propagates.
	ScanChunks(ctx context.Context, partitionID int32, lock bool, visit func(Chunk) error) error

	// CreateChunk persists a new chunk whose assigned range covers (at
	// least) timepoint. Concurrent creators are serialized by the store's
	// uniqueness constraint; a lost race surfaces as an error.
	CreateChunk(ctx context.Context, partitionID int32, timepoint int64) (Chunk, error)

	// TargetTables resolves the schema-qualified sub-tables the chunk's
	// rows fan out into, in deterministic order.
	TargetTables(ctx context.Context, chunkID int32) ([]hypertable.TableRef, error)
}

// Lookup resolves chunks against a Store.
type Lookup struct {
	store Store
}

// NewLookup wraps a store.
func NewLookup(store Store) *Lookup {
	return &Lookup{store: store}
}

// ResolveOrCreate finds the chunk covering timepoint within the partition,
// creating one when no row matches. The index narrows by partition only, so
// containment is re-checked per candidate row: bounds may be open. Exactly
// one genuine match may exist; a second covering row is ErrChunkOverlap.
func (l *Lookup) ResolveOrCreate(ctx context.Context, partitionID int32, timepoint int64, lock bool) (Chunk, error) {
	var found *Chunk
	err := l.store.ScanChunks(ctx, partitionID, lock, func(c Chunk) error {
		if !c.Range().Contains(timepoint) {
			return nil
		}
		if found != nil {
			return fmt.Errorf("%w: chunks %d and %d both cover timepoint %d of partition %d",
				ErrChunkOverlap, found.ID, c.ID, timepoint, partitionID)
		}
		match := c
		found = &match
		return nil
	})
	if err != nil {
		return Chunk{}, err
	}
	if found != nil {
		return *found, nil
	}

	chunk, err := l.store.CreateChunk(ctx, partitionID, timepoint)
	if err != nil {
		return Chunk{}, fmt.Errorf("catalog: create chunk for partition %d at %d: %w", partitionID, timepoint, err)
	}
	return chunk, nil
}

// AlignRange computes the interval-aligned inclusive range covering
// timepoint. Stores share it so every driver assigns identical ranges.
func AlignRange(timepoint, interval int64) (start, end int64) {
	start = timepoint / interval * interval
	if timepoint < 0 && timepoint%interval != 0 {
		start -= interval
	}
	return start, start + interval - 1
}
