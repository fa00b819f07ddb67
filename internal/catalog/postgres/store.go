// Package postgres implements the chunk catalog over PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/electwix/chunkplan/internal/catalog"
	"github.com/electwix/chunkplan/internal/hypertable"
)

// Querier is the slice of pgx a Store needs. *pgx.Conn, pgx.Tx and
// *pgxpool.Pool satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS chunk (
	id           SERIAL PRIMARY KEY,
	partition_id INTEGER NOT NULL,
	start_time   BIGINT,
	end_time     BIGINT
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

// Store is a catalog.Store backed by PostgreSQL. NULL time bounds encode
// open bounds; the optional share-mode row lock maps to FOR SHARE.
type Store struct {
	db       Querier
	interval int64
}

// New wraps a connection or pool. New chunks get ranges aligned to
// interval.
func New(db Querier, interval int64) (*Store, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("postgres: chunk interval must be positive, got %d", interval)
	}
	return &Store{db: db, interval: interval}, nil
}

// Bootstrap applies the catalog schema. Intended for embedded setups; a
// managed deployment provisions the schema itself.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres: apply catalog schema: %w", err)
	}
	return nil
}

// ScanChunks visits the partition's rows in start-time order, holding
// share-mode row locks for the scan when lock is set.
func (s *Store) ScanChunks(ctx context.Context, partitionID int32, lock bool, visit func(catalog.Chunk) error) error {
	query := `SELECT id, partition_id, start_time, end_time FROM chunk
		WHERE partition_id = $1 ORDER BY start_time`
	if lock {
		query += ` FOR SHARE`
	}
	rows, err := s.db.Query(ctx, query, partitionID)
	if err != nil {
		return fmt.Errorf("postgres: scan chunks of partition %d: %w", partitionID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			chunk      catalog.Chunk
			start, end *int64
		)
		if err := rows.Scan(&chunk.ID, &chunk.PartitionID, &start, &end); err != nil {
			return fmt.Errorf("postgres: scan chunk row: %w", err)
		}
		chunk.StartTime = hypertable.OpenStart
		if start != nil {
			chunk.StartTime = *start
		}
		chunk.EndTime = hypertable.OpenEnd
		if end != nil {
			chunk.EndTime = *end
		}
		if err := visit(chunk); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: scan chunks of partition %d: %w", partitionID, err)
	}
	return nil
}

// CreateChunk inserts an interval-aligned chunk covering timepoint. The
// unique index serializes concurrent creators.
func (s *Store) CreateChunk(ctx context.Context, partitionID int32, timepoint int64) (catalog.Chunk, error) {
	start, end := catalog.AlignRange(timepoint, s.interval)
	chunk := catalog.Chunk{PartitionID: partitionID, StartTime: start, EndTime: end}
	err := s.db.QueryRow(ctx,
		`INSERT INTO chunk (partition_id, start_time, end_time) VALUES ($1, $2, $3) RETURNING id`,
		partitionID, start, end).Scan(&chunk.ID)
	if err != nil {
		return catalog.Chunk{}, fmt.Errorf("postgres: create chunk for partition %d: %w", partitionID, err)
	}
	return chunk, nil
}

// AddTarget registers one fan-out table for the chunk.
func (s *Store) AddTarget(ctx context.Context, chunkID int32, ref hypertable.TableRef) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO chunk_table (chunk_id, schema_name, table_name) VALUES ($1, $2, $3)`,
		chunkID, ref.Schema, ref.Name)
	if err != nil {
		return fmt.Errorf("postgres: add target for chunk %d: %w", chunkID, err)
	}
	return nil
}

// TargetTables returns the chunk's fan-out tables in name order.
func (s *Store) TargetTables(ctx context.Context, chunkID int32) ([]hypertable.TableRef, error) {
	rows, err := s.db.Query(ctx,
		`SELECT schema_name, table_name FROM chunk_table
		 WHERE chunk_id = $1 ORDER BY schema_name, table_name`, chunkID)
	if err != nil {
		return nil, fmt.Errorf("postgres: resolve targets of chunk %d: %w", chunkID, err)
	}
	defer rows.Close()

	var refs []hypertable.TableRef
	for rows.Next() {
		var ref hypertable.TableRef
		if err := rows.Scan(&ref.Schema, &ref.Name); err != nil {
			return nil, fmt.Errorf("postgres: resolve targets of chunk %d: %w", chunkID, err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: resolve targets of chunk %d: %w", chunkID, err)
	}
	return refs, nil
}

var _ catalog.Store = (*Store)(nil)
