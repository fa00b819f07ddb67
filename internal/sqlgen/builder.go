// Package sqlgen builds the SQL text for chunk data-movement statements.
// Builders are pure: the same input always yields byte-identical text.
package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/electwix/chunkplan/internal/hypertable"
)

// ErrNoTargets is returned when a move statement has no target sub-tables to
// fan the deleted rows out into.
var ErrNoTargets = errors.New("sqlgen: chunk has no target tables")

// MoveSpec is the input for one move statement: the staging relation rows are
// deleted from, the predicates bounding them, and the target sub-tables every
// deleted row is re-inserted into.
type MoveSpec struct {
	Staging    hypertable.TableRef
	TimeColumn string
	TimeType   hypertable.ColumnType
	Range      hypertable.Range

	// Partition predicate inputs. The predicate is emitted only when the
	// epoch has more than one partition.
	PartFunc      hypertable.PartFunc
	PartColumn    string
	Partitions    int
	KeyspaceStart int
	KeyspaceEnd   int

	Targets []hypertable.TableRef
}

// BuildMoveStatement renders the statement that moves staged rows into a
// chunk's target tables:
//
//	WITH selected AS (DELETE FROM ONLY <staging> <where> RETURNING *),
//	i_1 AS (INSERT INTO <target> SELECT * FROM selected), ...
//	SELECT 1
//
// Predicates are ANDed in a fixed order: partition keyspace first, then the
// start bound, then the end bound. Open bounds emit no predicate.
func BuildMoveStatement(spec MoveSpec) (string, error) {
	if len(spec.Targets) == 0 {
		return "", fmt.Errorf("%w: staging %s", ErrNoTargets, QuoteQualified(spec.Staging))
	}

	var where strings.Builder
	where.WriteString("WHERE TRUE")

	if spec.Partitions > 1 {
		fmt.Fprintf(&where, " AND (%s.%s(%s::TEXT, %d) BETWEEN %d AND %d)",
			QuoteIdent(spec.PartFunc.Schema),
			QuoteIdent(spec.PartFunc.Name),
			QuoteIdent(spec.PartColumn),
			spec.PartFunc.Modulus,
			spec.KeyspaceStart,
			spec.KeyspaceEnd)
	}
	if !spec.Range.StartOpen() {
		lit, err := TimeLiteral(spec.Range.Start, spec.TimeType)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&where, " AND (%s >= %s)", QuoteIdent(spec.TimeColumn), lit)
	}
	if !spec.Range.EndOpen() {
		lit, err := TimeLiteral(spec.Range.End, spec.TimeType)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&where, " AND (%s <= %s)", QuoteIdent(spec.TimeColumn), lit)
	}

	var stmt strings.Builder
	fmt.Fprintf(&stmt, "WITH selected AS (DELETE FROM ONLY %s %s RETURNING *)",
		QuoteQualified(spec.Staging), where.String())
	for i, target := range spec.Targets {
		fmt.Fprintf(&stmt, ", i_%d AS (INSERT INTO %s SELECT * FROM selected)",
			i+1, QuoteQualified(target))
	}
	stmt.WriteString(" SELECT 1")

	return stmt.String(), nil
}

// QuoteIdent renders an identifier inside double quotes, doubling embedded
// quotes.
func QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// QuoteQualified renders a schema-qualified table reference. An empty schema
// yields just the quoted table name.
func QuoteQualified(ref hypertable.TableRef) string {
	if ref.Schema == "" {
		return QuoteIdent(ref.Name)
	}
	return QuoteIdent(ref.Schema) + "." + QuoteIdent(ref.Name)
}
