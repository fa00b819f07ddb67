package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/electwix/chunkplan/internal/hypertable"
)

// MemStore is an in-process Store. It backs tests and the memory catalog
// driver. Unlike the plan cache it is synchronized: in a multi-worker host
// the store stands in for the shared catalog.
type MemStore struct {
	mu       sync.Mutex
	interval int64
	nextID   int32
	chunks   map[int32][]Chunk // partition id -> rows ordered by start time
	targets  map[int32][]hypertable.TableRef
}

// NewMemStore creates an empty store. New chunks get ranges aligned to
// interval.
func NewMemStore(interval int64) *MemStore {
	if interval <= 0 {
		interval = 86_400 * 1_000_000 // one day of microseconds
	}
	return &MemStore{
		interval: interval,
		chunks:   make(map[int32][]Chunk),
		targets:  make(map[int32][]hypertable.TableRef),
	}
}

// ScanChunks visits the partition's rows in start-time order. The lock flag
// is a no-op: the store serializes every call internally.
func (s *MemStore) ScanChunks(_ context.Context, partitionID int32, _ bool, visit func(Chunk) error) error {
	s.mu.Lock()
	rows := append([]Chunk(nil), s.chunks[partitionID]...)
	s.mu.Unlock()

	for _, row := range rows {
		if err := visit(row); err != nil {
			return err
		}
	}
	return nil
}

// CreateChunk inserts an interval-aligned chunk covering timepoint,
// rejecting ranges that would overlap an existing row.
func (s *MemStore) CreateChunk(_ context.Context, partitionID int32, timepoint int64) (Chunk, error) {
	start, end := AlignRange(timepoint, s.interval)
	chunk := Chunk{PartitionID: partitionID, StartTime: start, EndTime: end}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	chunk.ID = s.nextID
	if err := s.insertLocked(chunk); err != nil {
		s.nextID--
		return Chunk{}, err
	}
	return chunk, nil
}

// AddChunk inserts a fully-specified row, e.g. one with open bounds. Used to
// seed stores in tests and embeddings.
func (s *MemStore) AddChunk(chunk Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chunk.ID > s.nextID {
		s.nextID = chunk.ID
	}
	return s.insertLocked(chunk)
}

func (s *MemStore) insertLocked(chunk Chunk) error {
	rows := s.chunks[chunk.PartitionID]
	for _, row := range rows {
		if row.Range().Overlaps(chunk.Range()) {
			return fmt.Errorf("chunk %s overlaps existing chunk %d %s",
				chunk.Range(), row.ID, row.Range())
		}
	}
	rows = append(rows, chunk)
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartTime < rows[j].StartTime })
	s.chunks[chunk.PartitionID] = rows
	return nil
}

// SetChunkRange overwrites a chunk's validity range in place, modeling the
// external catalog operations that widen or adjust chunk boundaries. Overlap
// is deliberately not re-checked: transiently overlapping ranges during a
// mutation are the storage layer's concern and surface from lookup as
// ErrChunkOverlap.
func (s *MemStore) SetChunkRange(chunkID int32, start, end int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for partitionID, rows := range s.chunks {
		for i, row := range rows {
			if row.ID != chunkID {
				continue
			}
			rows[i].StartTime = start
			rows[i].EndTime = end
			sort.Slice(rows, func(i, j int) bool { return rows[i].StartTime < rows[j].StartTime })
			s.chunks[partitionID] = rows
			return nil
		}
	}
	return fmt.Errorf("chunk %d not found", chunkID)
}

// SetTargets registers the chunk's fan-out tables.
func (s *MemStore) SetTargets(chunkID int32, tables []hypertable.TableRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[chunkID] = append([]hypertable.TableRef(nil), tables...)
}

// AddTarget appends one fan-out table for the chunk.
func (s *MemStore) AddTarget(_ context.Context, chunkID int32, ref hypertable.TableRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[chunkID] = append(s.targets[chunkID], ref)
	return nil
}

// TargetTables returns the chunk's registered fan-out tables.
func (s *MemStore) TargetTables(_ context.Context, chunkID int32) ([]hypertable.TableRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]hypertable.TableRef(nil), s.targets[chunkID]...), nil
}

var _ Store = (*MemStore)(nil)
