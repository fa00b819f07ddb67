package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/electwix/chunkplan/internal/hypertable"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const tomlConfig = `
verbose = true

[catalog]
driver = "sqlite"
dsn = "catalog.db"
chunk_interval = 1000000

[cache]
capacity = 32

[hypertable]
id = 1
time_column = "time"
time_type = "bigint"
staging_schema = "staging"
staging_table = "_copy_1"
targets = ["public.metrics", "archive"]
`

const yamlConfig = `
verbose: true
catalog:
  driver: sqlite
  dsn: catalog.db
  chunk_interval: 1000000
cache:
  capacity: 32
hypertable:
  id: 1
  time_column: time
  time_type: bigint
  staging_schema: staging
  staging_table: _copy_1
  targets:
    - public.metrics
    - archive
`

func wantSettings() Settings {
	return Settings{
		Driver:        DriverSQLite,
		DSN:           "catalog.db",
		ChunkInterval: 1_000_000,
		CacheCapacity: 32,
		Table: hypertable.Hypertable{
			ID:         1,
			TimeColumn: "time",
			TimeType:   hypertable.ColumnBigint,
			Staging:    hypertable.TableRef{Schema: "staging", Name: "_copy_1"},
		},
		Targets: []hypertable.TableRef{
			{Schema: "public", Name: "metrics"},
			{Name: "archive"},
		},
		Verbose: true,
	}
}

func TestLoad(t *testing.T) {
	t.Run("toml", func(t *testing.T) {
		path := writeConfig(t, "chunkplan.toml", tomlConfig)
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if diff := cmp.Diff(wantSettings(), got); diff != "" {
			t.Errorf("settings mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		path := writeConfig(t, "chunkplan.yaml", yamlConfig)
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if diff := cmp.Diff(wantSettings(), got); diff != "" {
			t.Errorf("settings mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		path := writeConfig(t, "chunkplan.toml", `
[hypertable]
time_column = "time"
time_type = "timestamptz"
staging_table = "_copy_1"
`)
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if got.Driver != DriverMemory {
			t.Errorf("Driver = %q, want %q", got.Driver, DriverMemory)
		}
		if got.ChunkInterval != 86_400*1_000_000 {
			t.Errorf("ChunkInterval = %d, want one day of microseconds", got.ChunkInterval)
		}
		if got.CacheCapacity != 16 {
			t.Errorf("CacheCapacity = %d, want 16", got.CacheCapacity)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeConfig(t, "chunkplan.json", `{}`)
		if _, err := Load(path); err == nil {
			t.Fatal("expected error for unsupported format")
		}
	})
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown driver", `
[catalog]
driver = "oracle"
[hypertable]
time_column = "time"
time_type = "bigint"
staging_table = "_copy_1"
`},
		{"missing dsn", `
[catalog]
driver = "postgres"
[hypertable]
time_column = "time"
time_type = "bigint"
staging_table = "_copy_1"
`},
		{"negative interval", `
[catalog]
chunk_interval = -5
[hypertable]
time_column = "time"
time_type = "bigint"
staging_table = "_copy_1"
`},
		{"missing time column", `
[hypertable]
time_type = "bigint"
staging_table = "_copy_1"
`},
		{"unknown time type", `
[hypertable]
time_column = "time"
time_type = "uuid"
staging_table = "_copy_1"
`},
		{"missing staging table", `
[hypertable]
time_column = "time"
time_type = "bigint"
`},
		{"invalid target name", `
[hypertable]
time_column = "time"
time_type = "bigint"
staging_table = "_copy_1"
targets = ["public."]
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, "chunkplan.toml", tc.content)
			if _, err := Load(path); err == nil {
				t.Fatalf("Load(%s) succeeded, want error", tc.name)
			}
		})
	}
}
