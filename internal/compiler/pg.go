package compiler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PGConn is the slice of pgx a PGCompiler needs. *pgx.Conn and pgx.Tx
// satisfy it.
type PGConn interface {
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)
	Deallocate(ctx context.Context, name string) error
}

// PGCompiler compiles through server-side prepared statements on a
// PostgreSQL connection. Statement names are uuid-derived so concurrent
// compilations on the same session never collide.
type PGCompiler struct {
	conn PGConn
}

// NewPGCompiler wraps a PostgreSQL connection. The caller keeps ownership
// of the connection.
func NewPGCompiler(conn PGConn) *PGCompiler {
	return &PGCompiler{conn: conn}
}

// Compile prepares the statement server-side under a fresh name.
func (c *PGCompiler) Compile(ctx context.Context, text string, nparams int) (Plan, error) {
	if nparams != 0 {
		return nil, fmt.Errorf("compiler: move statements take no parameters, got %d", nparams)
	}
	name := "chunkplan_" + uuid.NewString()
	if _, err := c.conn.Prepare(ctx, name, text); err != nil {
		return nil, fmt.Errorf("compiler: prepare statement %s: %w", name, err)
	}
	return &pgPlan{text: text, name: name, conn: c.conn}, nil
}

type pgPlan struct {
	text     string
	name     string
	conn     PGConn
	released bool
}

func (p *pgPlan) Text() string { return p.text }

// Name returns the server-side statement name the plan executes under.
func (p *pgPlan) Name() string { return p.name }

func (p *pgPlan) Release() error {
	if p.released {
		return fmt.Errorf("compiler: plan %s already released", p.name)
	}
	p.released = true
	if err := p.conn.Deallocate(context.Background(), p.name); err != nil {
		return fmt.Errorf("compiler: deallocate %s: %w", p.name, err)
	}
	return nil
}
