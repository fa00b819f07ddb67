package sqlgen

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/electwix/chunkplan/internal/hypertable"
)

// The internal time domain is int64. For timestamp-family columns the value
// counts microseconds since the Unix epoch; for integer columns it is the
// column value itself; for numeric columns it counts microseconds rendered
// as fractional seconds.
const (
	usecPerSecond int64 = 1_000_000
	usecPerDay          = usecPerSecond * 86_400
)

// TimeLiteral renders an internal time value as a literal in the time
// column's native representation. Callers must filter out open-bound
// sentinels first; rendering one is an error.
func TimeLiteral(v int64, t hypertable.ColumnType) (string, error) {
	if v == hypertable.OpenStart || v == hypertable.OpenEnd {
		return "", fmt.Errorf("sqlgen: open bound has no literal form")
	}

	switch t {
	case hypertable.ColumnTimestamp:
		return "'" + usecToTime(v).Format("2006-01-02 15:04:05.000000") + "'::timestamp", nil
	case hypertable.ColumnTimestampTZ:
		return "'" + usecToTime(v).Format("2006-01-02 15:04:05.000000") + "+00'::timestamptz", nil
	case hypertable.ColumnDate:
		return "'" + usecToTime(floorAlign(v, usecPerDay)).Format("2006-01-02") + "'::date", nil
	case hypertable.ColumnBigint, hypertable.ColumnInteger, hypertable.ColumnSmallint:
		return strconv.FormatInt(v, 10), nil
	case hypertable.ColumnNumeric:
		// Exact microsecond-to-second scaling; float formatting would drift.
		return decimal.New(v, -6).StringFixed(6), nil
	default:
		return "", fmt.Errorf("sqlgen: cannot render literal for column type %s", t)
	}
}

func usecToTime(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

// floorAlign rounds v down to a multiple of unit, correct for negatives.
func floorAlign(v, unit int64) int64 {
	aligned := v / unit * unit
	if v < 0 && v%unit != 0 {
		aligned -= unit
	}
	return aligned
}
