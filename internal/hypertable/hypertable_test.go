package hypertable

import "testing"

func TestRangeContains(t *testing.T) {
	cases := []struct {
		name  string
		r     Range
		point int64
		want  bool
	}{
		{"inside", Range{Start: 100, End: 199}, 150, true},
		{"at start", Range{Start: 100, End: 199}, 100, true},
		{"at end", Range{Start: 100, End: 199}, 199, true},
		{"below", Range{Start: 100, End: 199}, 99, false},
		{"above", Range{Start: 100, End: 199}, 200, false},
		{"open start matches far negative", Range{Start: OpenStart, End: 199}, -1 << 40, true},
		{"open end matches far positive", Range{Start: 100, End: OpenEnd}, 1 << 40, true},
		{"fully open matches everything", OpenRange(), 0, true},
		{"negative bounds", Range{Start: -200, End: -100}, -150, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.r.Contains(tc.point); got != tc.want {
				t.Errorf("%s.Contains(%d) = %v, want %v", tc.r, tc.point, got, tc.want)
			}
		})
	}
}

func TestRangeOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Range
		want bool
	}{
		{"disjoint", Range{Start: 0, End: 99}, Range{Start: 100, End: 199}, false},
		{"touching endpoints", Range{Start: 0, End: 100}, Range{Start: 100, End: 199}, true},
		{"nested", Range{Start: 0, End: 999}, Range{Start: 100, End: 199}, true},
		{"identical", Range{Start: 100, End: 199}, Range{Start: 100, End: 199}, true},
		{"open start reaches low range", Range{Start: OpenStart, End: 50}, Range{Start: -500, End: -400}, true},
		{"open end reaches high range", Range{Start: 50, End: OpenEnd}, Range{Start: 400, End: 500}, true},
		{"open vs everything", OpenRange(), Range{Start: 7, End: 7}, true},
		{"open start stops before", Range{Start: OpenStart, End: 50}, Range{Start: 51, End: 60}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Errorf("%s.Overlaps(%s) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Errorf("%s.Overlaps(%s) = %v, want %v", tc.b, tc.a, got, tc.want)
			}
		})
	}
}

func TestRangeString(t *testing.T) {
	cases := []struct {
		r    Range
		want string
	}{
		{Range{Start: 100, End: 199}, "[100, 199]"},
		{Range{Start: OpenStart, End: 199}, "[-inf, 199]"},
		{Range{Start: 100, End: OpenEnd}, "[100, +inf]"},
		{OpenRange(), "[-inf, +inf]"},
	}
	for _, tc := range cases {
		if got := tc.r.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestParseColumnType(t *testing.T) {
	for want, name := range columnTypeNames {
		got, err := ParseColumnType(name)
		if err != nil {
			t.Fatalf("ParseColumnType(%q) returned error: %v", name, err)
		}
		if got != want {
			t.Errorf("ParseColumnType(%q) = %v, want %v", name, got, want)
		}
		if got.String() != name {
			t.Errorf("%v.String() = %q, want %q", got, got.String(), name)
		}
	}

	if _, err := ParseColumnType("uuid"); err == nil {
		t.Fatal("ParseColumnType accepted an unknown type")
	}
}

func TestTableRefString(t *testing.T) {
	if got := (TableRef{Schema: "public", Name: "metrics"}).String(); got != "public.metrics" {
		t.Errorf("qualified String() = %q", got)
	}
	if got := (TableRef{Name: "metrics"}).String(); got != "metrics" {
		t.Errorf("bare String() = %q", got)
	}
}
