// Package main implements the chunkplan CLI.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5"

	"github.com/electwix/chunkplan/internal/catalog"
	catpostgres "github.com/electwix/chunkplan/internal/catalog/postgres"
	catsqlite "github.com/electwix/chunkplan/internal/catalog/sqlite"
	"github.com/electwix/chunkplan/internal/cli"
	"github.com/electwix/chunkplan/internal/compiler"
	"github.com/electwix/chunkplan/internal/config"
	"github.com/electwix/chunkplan/internal/hypertable"
	"github.com/electwix/chunkplan/internal/logging"
	"github.com/electwix/chunkplan/internal/plancache"
)

func main() {
	code := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := cli.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			_, _ = fmt.Fprintln(stdout, err.Error())
			return 0
		}
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}

	logger := logging.NewSlogAdapter(logging.New(logging.Options{
		Verbose: opts.Verbose || settings.Verbose,
		Writer:  stderr,
	}))

	be, err := openBackend(ctx, settings, opts.DryRun)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer func() {
		if closeErr := be.close(); closeErr != nil {
			logger.Warn("closing catalog backend", "error", closeErr)
		}
	}()

	pc, err := plancache.New(plancache.Options{
		Store:    be.store,
		Compiler: be.compiler,
		Capacity: settings.CacheCapacity,
		Logger:   logger,
	})
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}

	table := settings.Table
	epoch := hypertable.Epoch{
		ID:         1,
		Column:     table.TimeColumn,
		Partitions: []hypertable.Partition{{ID: int32(opts.Partition)}},
	}
	part := &epoch.Partitions[0]

	chunk, err := catalog.NewLookup(be.store).ResolveOrCreate(ctx, part.ID, opts.At, opts.Lock)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if err := ensureTargets(ctx, be.store, chunk.ID, settings.Targets); err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}

	entry, err := pc.Fetch(ctx, plancache.QueryCtx{
		Table:     &table,
		Epoch:     &epoch,
		Partition: part,
		ChunkID:   chunk.ID,
		Start:     chunk.StartTime,
		End:       chunk.EndTime,
	})
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "chunk %d partition %d range %s\n", chunk.ID, chunk.PartitionID, chunk.Range())
	_, _ = fmt.Fprintln(stdout, entry.Plan.Text())

	if err := pc.Shutdown(); err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}

// backend pairs the catalog store with the plan compiler that matches its
// driver.
type backend struct {
	store    catalog.Store
	compiler compiler.Compiler
	close    func() error
}

func openBackend(ctx context.Context, settings config.Settings, dryRun bool) (backend, error) {
	switch settings.Driver {
	case config.DriverMemory:
		return backend{
			store:    catalog.NewMemStore(settings.ChunkInterval),
			compiler: compiler.NewParseCompiler(),
			close:    func() error { return nil },
		}, nil

	case config.DriverSQLite:
		db, err := sql.Open("sqlite", settings.DSN)
		if err != nil {
			return backend{}, fmt.Errorf("open catalog %s: %w", settings.DSN, err)
		}
		db.SetMaxOpenConns(1)
		store, err := catsqlite.NewStore(db, settings.ChunkInterval)
		if err != nil {
			_ = db.Close()
			return backend{}, err
		}
		comp := compiler.Compiler(compiler.NewParseCompiler())
		if !dryRun {
			comp = compiler.NewSQLCompiler(db)
		}
		return backend{store: store, compiler: comp, close: db.Close}, nil

	case config.DriverPostgres:
		conn, err := pgx.Connect(ctx, settings.DSN)
		if err != nil {
			return backend{}, fmt.Errorf("connect catalog: %w", err)
		}
		store, err := catpostgres.New(conn, settings.ChunkInterval)
		if err != nil {
			_ = conn.Close(ctx)
			return backend{}, err
		}
		if err := store.Bootstrap(ctx); err != nil {
			_ = conn.Close(ctx)
			return backend{}, err
		}
		comp := compiler.Compiler(compiler.NewParseCompiler())
		if !dryRun {
			comp = compiler.NewPGCompiler(conn)
		}
		return backend{
			store:    store,
			compiler: comp,
			close:    func() error { return conn.Close(context.Background()) },
		}, nil
	}
	return backend{}, fmt.Errorf("unknown catalog driver %q", settings.Driver)
}

// targetRegistrar is the optional store surface for registering fan-out
// tables. All bundled drivers implement it.
type targetRegistrar interface {
	AddTarget(ctx context.Context, chunkID int32, ref hypertable.TableRef) error
}

// ensureTargets registers the configured fan-out tables for a chunk that has
// none yet. Chunks that already carry targets keep them.
func ensureTargets(ctx context.Context, store catalog.Store, chunkID int32, targets []hypertable.TableRef) error {
	if len(targets) == 0 {
		return nil
	}
	existing, err := store.TargetTables(ctx, chunkID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	reg, ok := store.(targetRegistrar)
	if !ok {
		return fmt.Errorf("catalog driver %T cannot register target tables", store)
	}
	for _, ref := range targets {
		if err := reg.AddTarget(ctx, chunkID, ref); err != nil {
			return fmt.Errorf("register target %s for chunk %d: %w", ref, chunkID, err)
		}
	}
	return nil
}
