package compiler

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLCompiler compiles through database/sql prepared statements. It works
// with any registered driver; chunkplan pairs it with modernc.org/sqlite.
type SQLCompiler struct {
	db *sql.DB
}

// NewSQLCompiler wraps an open database handle. The caller keeps ownership
// of the handle.
func NewSQLCompiler(db *sql.DB) *SQLCompiler {
	return &SQLCompiler{db: db}
}

// Compile prepares the statement against the database.
func (c *SQLCompiler) Compile(ctx context.Context, text string, nparams int) (Plan, error) {
	if nparams != 0 {
		return nil, fmt.Errorf("compiler: move statements take no parameters, got %d", nparams)
	}
	stmt, err := c.db.PrepareContext(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("compiler: prepare statement: %w", err)
	}
	return &sqlPlan{text: text, stmt: stmt}, nil
}

type sqlPlan struct {
	text     string
	stmt     *sql.Stmt
	released bool
}

func (p *sqlPlan) Text() string { return p.text }

// Stmt exposes the prepared statement for execution.
func (p *sqlPlan) Stmt() *sql.Stmt { return p.stmt }

func (p *sqlPlan) Release() error {
	if p.released {
		return fmt.Errorf("compiler: plan already released")
	}
	p.released = true
	return p.stmt.Close()
}
