package compiler

import (
	"context"
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ParseCompiler compiles by parsing the move statement shape instead of
// handing it to a database. The resulting plan is the parse tree; Release
// only checks the exactly-once contract. Used for dry runs and tests.
type ParseCompiler struct{}

// NewParseCompiler returns a database-free compiler.
func NewParseCompiler() *ParseCompiler {
	return &ParseCompiler{}
}

var moveLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "QuotedIdent", Pattern: `"(?:[^"]|"")*"`},
		{Name: "String", Pattern: `'[^']*'`},
		{Name: "Number", Pattern: `-?[0-9]+(?:\.[0-9]+)?`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Cast", Pattern: `::`},
		{Name: "Symbol", Pattern: `[(),.*]`},
		{Name: "Operator", Pattern: `[<>=!+\-/]+`},
	},
})

// moveStatement is the grammar of the statements sqlgen produces: a DELETE
// CTE over the staging relation, one INSERT CTE per target table, and the
// trivial SELECT 1 confirmation.
type moveStatement struct {
	Delete  deleteCTE    `parser:"\"WITH\" \"selected\" \"AS\" \"(\" @@ \")\""`
	Inserts []insertCTE  `parser:"(\",\" @@)+"`
	Final   confirmation `parser:"@@"`
}

type deleteCTE struct {
	Staging tableName `parser:"\"DELETE\" \"FROM\" \"ONLY\" @@"`
	Where   whereTree `parser:"@@"`
	Ret     string    `parser:"\"RETURNING\" @\"*\""`
}

type whereTree struct {
	Preds []predGroup `parser:"\"WHERE\" \"TRUE\" (\"AND\" @@)*"`
}

type predGroup struct {
	Items []predItem `parser:"\"(\" @@+ \")\""`
}

type predItem struct {
	Group *predGroup `parser:"@@"`
	Token string     `parser:"| @(QuotedIdent | Ident | Number | String | Operator | Cast | \",\" | \".\" | \"*\")"`
}

type insertCTE struct {
	Name   string    `parser:"@Ident \"AS\""`
	Target tableName `parser:"\"(\" \"INSERT\" \"INTO\" @@"`
	Source string    `parser:"\"SELECT\" \"*\" \"FROM\" @\"selected\" \")\""`
}

type confirmation struct {
	Value string `parser:"\"SELECT\" @Number"`
}

type tableName struct {
	First string `parser:"@(QuotedIdent | Ident)"`
	Rest  string `parser:"(\".\" @(QuotedIdent | Ident))?"`
}

var moveParser = participle.MustBuild[moveStatement](
	participle.Lexer(moveLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Compile parses text and returns the parse tree as the plan handle.
func (c *ParseCompiler) Compile(_ context.Context, text string, nparams int) (Plan, error) {
	if nparams != 0 {
		return nil, fmt.Errorf("compiler: move statements take no parameters, got %d", nparams)
	}
	stmt, err := moveParser.ParseString("", text)
	if err != nil {
		return nil, fmt.Errorf("compiler: parse statement: %w", err)
	}
	return &parsePlan{text: text, stmt: stmt}, nil
}

type parsePlan struct {
	text     string
	stmt     *moveStatement
	released bool
}

func (p *parsePlan) Text() string { return p.text }

// Targets returns the number of insert CTEs in the parsed statement.
func (p *parsePlan) Targets() int { return len(p.stmt.Inserts) }

func (p *parsePlan) Release() error {
	if p.released {
		return fmt.Errorf("compiler: plan already released")
	}
	p.released = true
	return nil
}
