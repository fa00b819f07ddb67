// Package sqlite implements the chunk catalog over SQLite using the
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/electwix/chunkplan/internal/catalog"
	"github.com/electwix/chunkplan/internal/hypertable"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS chunk (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	partition_id INTEGER NOT NULL,
	start_time   INTEGER,
	end_time     INTEGER
);
CREATE UNIQUE INDEX IF NOT EXISTS chunk_partition_start_time_idx
	ON chunk (partition_id, start_time, end_time);
CREATE TABLE IF NOT EXISTS chunk_table (
	chunk_id    INTEGER NOT NULL REFERENCES chunk (id),
	schema_name TEXT NOT NULL,
	table_name  TEXT NOT NULL,
	PRIMARY KEY (chunk_id, schema_name, table_name)
);
`

// Store is a catalog.Store backed by a SQLite database. NULL time bounds
// encode open bounds.
type Store struct {
	db       *sql.DB
	interval int64
	owned    bool
}

// Open opens (creating if needed) the catalog database at dsn. New chunks
// get ranges aligned to interval. The connection pool is capped at one
// connection: SQLite is a single-writer store and this keeps in-memory
// databases on one schema.
func Open(dsn string, interval int64) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open catalog %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	store, err := NewStore(db, interval)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// NewStore wraps an already-open database handle, applying the catalog
// schema. The caller keeps ownership of the handle.
func NewStore(db *sql.DB, interval int64) (*Store, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sqlite: chunk interval must be positive, got %d", interval)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, fmt.Errorf("sqlite: apply catalog schema: %w", err)
	}
	return &Store{db: db, interval: interval}, nil
}

// Close closes the database when the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// ScanChunks visits the partition's rows in start-time order. SQLite has no
// row-level share locks; the lock flag is accepted for contract parity and
// relies on the database-level write lock instead.
func (s *Store) ScanChunks(ctx context.Context, partitionID int32, _ bool, visit func(catalog.Chunk) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, partition_id, start_time, end_time FROM chunk
		 WHERE partition_id = ? ORDER BY start_time`, partitionID)
	if err != nil {
		return fmt.Errorf("sqlite: scan chunks of partition %d: %w", partitionID, err)
	}
	defer rows.Close()

	for rows.Next() {
		chunk, err := scanChunkRow(rows)
		if err != nil {
			return err
		}
		if err := visit(chunk); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: scan chunks of partition %d: %w", partitionID, err)
	}
	return nil
}

// CreateChunk inserts an interval-aligned chunk covering timepoint. The
// unique index on (partition_id, start_time, end_time) serializes
// concurrent creators; a lost race surfaces as a constraint error.
func (s *Store) CreateChunk(ctx context.Context, partitionID int32, timepoint int64) (catalog.Chunk, error) {
	start, end := catalog.AlignRange(timepoint, s.interval)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chunk (partition_id, start_time, end_time) VALUES (?, ?, ?)`,
		partitionID, start, end)
	if err != nil {
		return catalog.Chunk{}, fmt.Errorf("sqlite: create chunk for partition %d: %w", partitionID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return catalog.Chunk{}, fmt.Errorf("sqlite: create chunk for partition %d: %w", partitionID, err)
	}
	return catalog.Chunk{
		ID:          int32(id),
		PartitionID: partitionID,
		StartTime:   start,
		EndTime:     end,
	}, nil
}

// SetChunkRange overwrites a chunk's validity range, modeling external
// catalog range mutations.
func (s *Store) SetChunkRange(ctx context.Context, chunkID int32, start, end int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chunk SET start_time = ?, end_time = ? WHERE id = ?`,
		nullableBound(start, hypertable.OpenStart), nullableBound(end, hypertable.OpenEnd), chunkID)
	if err != nil {
		return fmt.Errorf("sqlite: update range of chunk %d: %w", chunkID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update range of chunk %d: %w", chunkID, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: chunk %d not found", chunkID)
	}
	return nil
}

// AddTarget registers one fan-out table for the chunk.
func (s *Store) AddTarget(ctx context.Context, chunkID int32, ref hypertable.TableRef) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunk_table (chunk_id, schema_name, table_name) VALUES (?, ?, ?)`,
		chunkID, ref.Schema, ref.Name)
	if err != nil {
		return fmt.Errorf("sqlite: add target for chunk %d: %w", chunkID, err)
	}
	return nil
}

// TargetTables returns the chunk's fan-out tables in name order.
func (s *Store) TargetTables(ctx context.Context, chunkID int32) ([]hypertable.TableRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT schema_name, table_name FROM chunk_table
		 WHERE chunk_id = ? ORDER BY schema_name, table_name`, chunkID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: resolve targets of chunk %d: %w", chunkID, err)
	}
	defer rows.Close()

	var refs []hypertable.TableRef
	for rows.Next() {
		var ref hypertable.TableRef
		if err := rows.Scan(&ref.Schema, &ref.Name); err != nil {
			return nil, fmt.Errorf("sqlite: resolve targets of chunk %d: %w", chunkID, err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: resolve targets of chunk %d: %w", chunkID, err)
	}
	return refs, nil
}

func scanChunkRow(rows *sql.Rows) (catalog.Chunk, error) {
	var (
		chunk      catalog.Chunk
		start, end sql.NullInt64
	)
	if err := rows.Scan(&chunk.ID, &chunk.PartitionID, &start, &end); err != nil {
		return catalog.Chunk{}, fmt.Errorf("sqlite: scan chunk row: %w", err)
	}
	chunk.StartTime = hypertable.OpenStart
	if start.Valid {
		chunk.StartTime = start.Int64
	}
	chunk.EndTime = hypertable.OpenEnd
	if end.Valid {
		chunk.EndTime = end.Int64
	}
	return chunk, nil
}

// nullableBound maps an open-bound sentinel to NULL.
func nullableBound(v, sentinel int64) any {
	if v == sentinel {
		return nil
	}
	return v
}

var _ catalog.Store = (*Store)(nil)
