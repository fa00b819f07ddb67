package sqlgen

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/electwix/chunkplan/internal/hypertable"
)

func intSpec() MoveSpec {
	return MoveSpec{
		Staging:    hypertable.TableRef{Schema: "staging", Name: "_copy_1"},
		TimeColumn: "time",
		TimeType:   hypertable.ColumnBigint,
		Range:      hypertable.Range{Start: 1000, End: 2000},
		Partitions: 1,
		Targets: []hypertable.TableRef{
			{Schema: "public", Name: "t1"},
		},
	}
}

func TestBuildMoveStatement(t *testing.T) {
	t.Run("single partition", func(t *testing.T) {
		got, err := BuildMoveStatement(intSpec())
		if err != nil {
			t.Fatalf("BuildMoveStatement returned error: %v", err)
		}
		want := `WITH selected AS (DELETE FROM ONLY "staging"."_copy_1" ` +
			`WHERE TRUE AND ("time" >= 1000) AND ("time" <= 2000) RETURNING *), ` +
			`i_1 AS (INSERT INTO "public"."t1" SELECT * FROM selected) SELECT 1`
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("statement mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("multiple partitions add keyspace predicate first", func(t *testing.T) {
		spec := intSpec()
		spec.Partitions = 2
		spec.PartFunc = hypertable.PartFunc{Schema: "catalog", Name: "get_partition", Modulus: 32768}
		spec.PartColumn = "device"
		spec.KeyspaceStart = 0
		spec.KeyspaceEnd = 16383

		got, err := BuildMoveStatement(spec)
		if err != nil {
			t.Fatalf("BuildMoveStatement returned error: %v", err)
		}
		wantPred := `WHERE TRUE AND ("catalog"."get_partition"("device"::TEXT, 32768) BETWEEN 0 AND 16383) AND ("time" >= 1000)`
		if !strings.Contains(got, wantPred) {
			t.Errorf("statement %q does not contain %q", got, wantPred)
		}
	})

	t.Run("multiple targets fan out", func(t *testing.T) {
		spec := intSpec()
		spec.Targets = append(spec.Targets, hypertable.TableRef{Schema: "public", Name: "t2"})

		got, err := BuildMoveStatement(spec)
		if err != nil {
			t.Fatalf("BuildMoveStatement returned error: %v", err)
		}
		for _, clause := range []string{
			`i_1 AS (INSERT INTO "public"."t1" SELECT * FROM selected)`,
			`i_2 AS (INSERT INTO "public"."t2" SELECT * FROM selected)`,
		} {
			if !strings.Contains(got, clause) {
				t.Errorf("statement %q does not contain %q", got, clause)
			}
		}
	})

	t.Run("open bounds emit no predicate", func(t *testing.T) {
		spec := intSpec()
		spec.Range = hypertable.OpenRange()

		got, err := BuildMoveStatement(spec)
		if err != nil {
			t.Fatalf("BuildMoveStatement returned error: %v", err)
		}
		if strings.Contains(got, ">=") || strings.Contains(got, "<=") {
			t.Errorf("open-bound statement contains a time predicate: %q", got)
		}
		if !strings.Contains(got, "WHERE TRUE RETURNING") {
			t.Errorf("statement %q missing bare base predicate", got)
		}
	})

	t.Run("open start keeps end bound", func(t *testing.T) {
		spec := intSpec()
		spec.Range.Start = hypertable.OpenStart

		got, err := BuildMoveStatement(spec)
		if err != nil {
			t.Fatalf("BuildMoveStatement returned error: %v", err)
		}
		if strings.Contains(got, ">=") {
			t.Errorf("open-start statement has a start predicate: %q", got)
		}
		if !strings.Contains(got, `("time" <= 2000)`) {
			t.Errorf("statement %q missing end predicate", got)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		spec := intSpec()
		first, err := BuildMoveStatement(spec)
		if err != nil {
			t.Fatalf("BuildMoveStatement returned error: %v", err)
		}
		for i := 0; i < 10; i++ {
			again, err := BuildMoveStatement(spec)
			if err != nil {
				t.Fatalf("BuildMoveStatement returned error: %v", err)
			}
			if again != first {
				t.Fatalf("statement differs between runs:\n%s\n%s", first, again)
			}
		}
	})

	t.Run("no targets", func(t *testing.T) {
		spec := intSpec()
		spec.Targets = nil
		if _, err := BuildMoveStatement(spec); !errors.Is(err, ErrNoTargets) {
			t.Fatalf("BuildMoveStatement = %v, want ErrNoTargets", err)
		}
	})
}

func TestQuoteIdent(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"time", `"time"`},
		{"weird name", `"weird name"`},
		{`qu"ote`, `"qu""ote"`},
	}
	for _, tc := range cases {
		if got := QuoteIdent(tc.in); got != tc.want {
			t.Errorf("QuoteIdent(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestTimeLiteral(t *testing.T) {
	cases := []struct {
		name string
		v    int64
		t    hypertable.ColumnType
		want string
	}{
		{"bigint", 1000, hypertable.ColumnBigint, "1000"},
		{"integer negative", -5, hypertable.ColumnInteger, "-5"},
		{"timestamp", 1_500_000_000_000_000, hypertable.ColumnTimestamp,
			"'2017-07-14 02:40:00.000000'::timestamp"},
		{"timestamptz", 1_500_000_000_000_000, hypertable.ColumnTimestampTZ,
			"'2017-07-14 02:40:00.000000+00'::timestamptz"},
		{"date", 1_500_000_000_000_000, hypertable.ColumnDate, "'2017-07-14'::date"},
		{"numeric scales microseconds", 1_500_000_250_000, hypertable.ColumnNumeric,
			"1500000.250000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := TimeLiteral(tc.v, tc.t)
			if err != nil {
				t.Fatalf("TimeLiteral returned error: %v", err)
			}
			if got != tc.want {
				t.Errorf("TimeLiteral(%d, %s) = %s, want %s", tc.v, tc.t, got, tc.want)
			}
		})
	}

	t.Run("open bounds are rejected", func(t *testing.T) {
		for _, v := range []int64{hypertable.OpenStart, hypertable.OpenEnd} {
			if _, err := TimeLiteral(v, hypertable.ColumnBigint); err == nil {
				t.Errorf("TimeLiteral(%d) succeeded, want error", v)
			}
		}
	})
}
