// Package hypertable describes the partitioning metadata chunkplan consumes:
// the hypertable itself (time column), the partitioning epoch in effect, and
// the keyspace partitions inside it. The metadata is supplied by the host
// catalog; chunkplan never writes it.
package hypertable

import (
	"fmt"
	"math"
)

// Sentinel values for open range bounds. They are distinguishable from every
// real boundary and must never be rendered as SQL literals.
const (
	OpenStart int64 = math.MinInt64
	OpenEnd   int64 = math.MaxInt64
)

// Range is an inclusive validity range over the internal time domain.
// Either bound may be open.
type Range struct {
	Start int64
	End   int64
}

// OpenRange returns a range unbounded on both sides.
func OpenRange() Range {
	return Range{Start: OpenStart, End: OpenEnd}
}

// Contains reports whether t falls inside the range. An open bound always
// matches on its side.
func (r Range) Contains(t int64) bool {
	return (r.Start == OpenStart || t >= r.Start) &&
		(r.End == OpenEnd || t <= r.End)
}

// Equal reports whether two ranges have identical bounds.
func (r Range) Equal(o Range) bool {
	return r.Start == o.Start && r.End == o.End
}

// Overlaps reports whether the two ranges share at least one point. The
// sentinel values order below and above every real bound, so the plain
// interval comparison covers open bounds too.
func (r Range) Overlaps(o Range) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// StartOpen reports whether the start bound is open.
func (r Range) StartOpen() bool { return r.Start == OpenStart }

// EndOpen reports whether the end bound is open.
func (r Range) EndOpen() bool { return r.End == OpenEnd }

func (r Range) String() string {
	start, end := "-inf", "+inf"
	if !r.StartOpen() {
		start = fmt.Sprintf("%d", r.Start)
	}
	if !r.EndOpen() {
		end = fmt.Sprintf("%d", r.End)
	}
	return fmt.Sprintf("[%s, %s]", start, end)
}

// ColumnType identifies the native SQL type of a hypertable's time column.
// It selects how internal time values are rendered as literals.
type ColumnType int

const (
	ColumnTimestamp ColumnType = iota
	ColumnTimestampTZ
	ColumnDate
	ColumnBigint
	ColumnInteger
	ColumnSmallint
	ColumnNumeric
)

var columnTypeNames = map[ColumnType]string{
	ColumnTimestamp:   "timestamp",
	ColumnTimestampTZ: "timestamptz",
	ColumnDate:        "date",
	ColumnBigint:      "bigint",
	ColumnInteger:     "integer",
	ColumnSmallint:    "smallint",
	ColumnNumeric:     "numeric",
}

func (t ColumnType) String() string {
	if name, ok := columnTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// ParseColumnType maps a type name to its ColumnType.
func ParseColumnType(name string) (ColumnType, error) {
	for t, n := range columnTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("hypertable: unknown time column type %q", name)
}

// TableRef names a schema-qualified relation.
type TableRef struct {
	Schema string
	Name   string
}

// String returns the dotted name, omitting an empty schema.
func (r TableRef) String() string {
	if r.Schema == "" {
		return r.Name
	}
	return r.Schema + "." + r.Name
}

// PartFunc is the partitioning function applied to the partitioning column.
type PartFunc struct {
	Schema  string
	Name    string
	Modulus int
}

// Partition is one keyspace slice of an epoch. Keyspace bounds are inclusive.
type Partition struct {
	ID            int32
	KeyspaceStart int
	KeyspaceEnd   int
}

// Epoch is a partitioning configuration version: the partitioning function,
// the column it is applied to, and the partition set effective under it.
type Epoch struct {
	ID         int32
	PartFunc   PartFunc
	Column     string
	Partitions []Partition
}

// Hypertable carries the per-table metadata the plan builder needs. Staging
// is the copy relation rows are moved out of.
type Hypertable struct {
	ID         int32
	TimeColumn string
	TimeType   ColumnType
	Staging    TableRef
}
