// Package plancache caches compiled move plans per chunk.
//
// Each chunk has one plan that moves staged rows into the chunk's target
// tables. The plan embeds the chunk's validity range as literal predicates,
// so the range is the freshness signal: a fetch that observes a changed
// range releases the old plan and compiles a fresh one, while any catalog
// metadata change anywhere discards the whole cache. Chunks themselves are
// not cached; they are locked per insert anyway.
package plancache

import (
	"context"
	"fmt"

	"github.com/electwix/chunkplan/internal/cache"
	"github.com/electwix/chunkplan/internal/catalog"
	"github.com/electwix/chunkplan/internal/compiler"
	"github.com/electwix/chunkplan/internal/hypertable"
	"github.com/electwix/chunkplan/internal/logging"
	"github.com/electwix/chunkplan/internal/sqlgen"
)

// QueryCtx carries everything a fetch needs: the hypertable and partitioning
// metadata the statement text is built from, plus the chunk identity and its
// current validity range.
type QueryCtx struct {
	Table     *hypertable.Hypertable
	Epoch     *hypertable.Epoch
	Partition *hypertable.Partition
	ChunkID   int32
	Start     int64
	End       int64
}

// Entry is one cached plan. The range snapshot records what the plan was
// compiled for; the entry is stale as soon as the live chunk's range
// differs. Entries are owned by the cache and updated in place.
type Entry struct {
	ChunkID   int32
	StartTime int64
	EndTime   int64
	Plan      compiler.Plan
}

// Range returns the range snapshot the plan was built for.
func (e *Entry) Range() hypertable.Range {
	return hypertable.Range{Start: e.StartTime, End: e.EndTime}
}

// TargetResolver resolves a chunk's fan-out sub-tables. catalog.Store
// satisfies it.
type TargetResolver interface {
	TargetTables(ctx context.Context, chunkID int32) ([]hypertable.TableRef, error)
}

// policy implements the cache entry lifecycle for chunk plans.
type policy struct {
	compiler compiler.Compiler
	targets  TargetResolver
	armed    bool // post-invalidate re-readies the table until shutdown
}

func (p *policy) KeyOf(qc QueryCtx) int32 { return qc.ChunkID }

func (p *policy) statementText(ctx context.Context, qc QueryCtx) (string, error) {
	targets, err := p.targets.TargetTables(ctx, qc.ChunkID)
	if err != nil {
		return "", fmt.Errorf("plancache: resolve targets for chunk %d: %w", qc.ChunkID, err)
	}
	return sqlgen.BuildMoveStatement(sqlgen.MoveSpec{
		Staging:       qc.Table.Staging,
		TimeColumn:    qc.Table.TimeColumn,
		TimeType:      qc.Table.TimeType,
		Range:         hypertable.Range{Start: qc.Start, End: qc.End},
		PartFunc:      qc.Epoch.PartFunc,
		PartColumn:    qc.Epoch.Column,
		Partitions:    len(qc.Epoch.Partitions),
		KeyspaceStart: qc.Partition.KeyspaceStart,
		KeyspaceEnd:   qc.Partition.KeyspaceEnd,
		Targets:       targets,
	})
}

func (p *policy) compile(ctx context.Context, qc QueryCtx) (compiler.Plan, error) {
	text, err := p.statementText(ctx, qc)
	if err != nil {
		return nil, err
	}
	plan, err := p.compiler.Compile(ctx, text, 0)
	if err != nil {
		return nil, fmt.Errorf("plancache: compile plan for chunk %d: %w", qc.ChunkID, err)
	}
	return plan, nil
}

func (p *policy) NewEntry(ctx context.Context, qc QueryCtx) (*Entry, error) {
	plan, err := p.compile(ctx, qc)
	if err != nil {
		return nil, err
	}
	return &Entry{
		ChunkID:   qc.ChunkID,
		StartTime: qc.Start,
		EndTime:   qc.End,
		Plan:      plan,
	}, nil
}

func (p *policy) UpdateEntry(ctx context.Context, entry *Entry, qc QueryCtx) (*Entry, error) {
	if entry.StartTime == qc.Start && entry.EndTime == qc.End {
		return entry, nil
	}

	// The range changed under us. Compile for the new range before touching
	// the entry so a failure leaves the prior plan intact.
	plan, err := p.compile(ctx, qc)
	if err != nil {
		return nil, err
	}
	if err := entry.Plan.Release(); err != nil {
		_ = plan.Release()
		return nil, fmt.Errorf("plancache: release stale plan for chunk %d: %w", qc.ChunkID, err)
	}
	entry.StartTime = qc.Start
	entry.EndTime = qc.End
	entry.Plan = plan
	return entry, nil
}

func (p *policy) PreInvalidate(entries []*Entry) error {
	for _, entry := range entries {
		if err := entry.Plan.Release(); err != nil {
			return fmt.Errorf("plancache: release plan for chunk %d: %w", entry.ChunkID, err)
		}
	}
	return nil
}

func (p *policy) PostInvalidate() bool { return p.armed }

// PlanCache is the chunk plan cache. One instance lives per process or
// session, constructed at startup and shut down once; it is passed by
// reference, never a global. It is not internally synchronized (see the
// cache package).
type PlanCache struct {
	cache  *cache.Cache[QueryCtx, int32, *Entry]
	lookup *catalog.Lookup
	policy *policy
	log    logging.Logger
}

// Options configures a PlanCache.
type Options struct {
	// Store supplies chunk rows and target tables.
	Store catalog.Store
	// Compiler turns statement text into plan handles.
	Compiler compiler.Compiler
	// Capacity is a sizing hint for the cache table.
	Capacity int
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// New creates a ready, empty plan cache.
func New(opts Options) (*PlanCache, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("plancache: store is required")
	}
	if opts.Compiler == nil {
		return nil, fmt.Errorf("plancache: compiler is required")
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	p := &policy{
		compiler: opts.Compiler,
		targets:  opts.Store,
		armed:    true,
	}
	return &PlanCache{
		cache:  cache.New[QueryCtx, int32, *Entry](p, opts.Capacity),
		lookup: catalog.NewLookup(opts.Store),
		policy: p,
		log:    log,
	}, nil
}

// Fetch returns the ready plan entry for the chunk named by qc, compiling or
// refreshing it as needed.
func (pc *PlanCache) Fetch(ctx context.Context, qc QueryCtx) (*Entry, error) {
	return pc.cache.Fetch(ctx, qc)
}

// ChunkPlan pairs a resolved chunk with its ready plan.
type ChunkPlan struct {
	Chunk catalog.Chunk
	Plan  compiler.Plan
}

// ChunkPlan resolves the chunk covering timepoint — creating one when none
// exists — and returns it with its compiled move plan. lock requests a
// share-mode row lock for the duration of the chunk scan.
func (pc *PlanCache) ChunkPlan(ctx context.Context, table *hypertable.Hypertable, epoch *hypertable.Epoch, part *hypertable.Partition, timepoint int64, lock bool) (*ChunkPlan, error) {
	chunk, err := pc.lookup.ResolveOrCreate(ctx, part.ID, timepoint, lock)
	if err != nil {
		return nil, err
	}
	entry, err := pc.Fetch(ctx, QueryCtx{
		Table:     table,
		Epoch:     epoch,
		Partition: part,
		ChunkID:   chunk.ID,
		Start:     chunk.StartTime,
		End:       chunk.EndTime,
	})
	if err != nil {
		return nil, err
	}
	return &ChunkPlan{Chunk: chunk, Plan: entry.Plan}, nil
}

// Invalidate releases every cached plan and clears the table.
func (pc *PlanCache) Invalidate() error {
	return pc.cache.Invalidate()
}

// OnMetadataChange is the broadcast entry point the catalog layer calls
// synchronously after committing any chunk or partition metadata change. A
// single change anywhere discards the entire cache; per-chunk dependency
// tracking is deliberately not attempted.
func (pc *PlanCache) OnMetadataChange() error {
	pc.log.Debug("discarding chunk plan cache", "entries", pc.cache.Len())
	return pc.cache.Invalidate()
}

// Shutdown disarms the re-init hook and runs one final invalidation so every
// compiled plan is released. The cache is unusable afterwards.
func (pc *PlanCache) Shutdown() error {
	pc.policy.armed = false
	return pc.cache.Invalidate()
}

// Len returns the number of cached plans.
func (pc *PlanCache) Len() int {
	return pc.cache.Len()
}
