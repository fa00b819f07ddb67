// Package compiler abstracts the statement compiler service: it turns move
// statement text into opaque compiled-plan handles that are cheaper to
// execute repeatedly than re-parsing text each time.
//
// Plan handles own compiler-side resources and must be released exactly
// once. Three implementations are provided: SQLCompiler over database/sql
// prepared statements, PGCompiler over PostgreSQL via pgx, and ParseCompiler,
// a database-free validator used for dry runs and tests.
package compiler

import "context"

// Plan is an opaque compiled-plan handle.
type Plan interface {
	// Text returns the statement text the plan was compiled from.
	Text() string
	// Release frees compiler-side resources. A plan must be released
	// exactly once; further calls are an error.
	Release() error
}

// Compiler compiles statement text into a reusable plan. nparams is the
// number of bound parameters the statement expects; move statements always
// carry zero.
type Compiler interface {
	Compile(ctx context.Context, text string, nparams int) (Plan, error)
}
