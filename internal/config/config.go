// Package config loads and validates the chunkplan configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/electwix/chunkplan/internal/hypertable"
)

// Driver identifies the catalog storage backend.
type Driver string

const (
	// DriverMemory keeps the catalog in process memory.
	DriverMemory Driver = "memory"
	// DriverSQLite stores the catalog in SQLite via modernc.org/sqlite.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores the catalog in PostgreSQL via pgx.
	DriverPostgres Driver = "postgres"
)

var validDrivers = map[Driver]struct{}{
	DriverMemory:   {},
	DriverSQLite:   {},
	DriverPostgres: {},
}

// One day of microseconds, the default chunk interval.
const defaultChunkInterval int64 = 86_400 * 1_000_000

const defaultCacheCapacity = 16

// CatalogConfig selects the chunk catalog backend.
type CatalogConfig struct {
	Driver        string `toml:"driver" yaml:"driver"`
	DSN           string `toml:"dsn" yaml:"dsn"`
	ChunkInterval int64  `toml:"chunk_interval" yaml:"chunk_interval"`
}

// CacheConfig tunes the plan cache.
type CacheConfig struct {
	Capacity int `toml:"capacity" yaml:"capacity"`
}

// HypertableConfig describes the hypertable plans are built for. Targets
// lists default fan-out tables ("schema.table") registered for chunks that
// have none.
type HypertableConfig struct {
	ID            int32    `toml:"id" yaml:"id"`
	TimeColumn    string   `toml:"time_column" yaml:"time_column"`
	TimeType      string   `toml:"time_type" yaml:"time_type"`
	StagingSchema string   `toml:"staging_schema" yaml:"staging_schema"`
	StagingTable  string   `toml:"staging_table" yaml:"staging_table"`
	Targets       []string `toml:"targets" yaml:"targets"`
}

// Config mirrors the chunkplan configuration file schema. Both TOML and
// YAML files are accepted, keyed by extension.
type Config struct {
	Catalog    CatalogConfig    `toml:"catalog" yaml:"catalog"`
	Cache      CacheConfig      `toml:"cache" yaml:"cache"`
	Hypertable HypertableConfig `toml:"hypertable" yaml:"hypertable"`
	Verbose    bool             `toml:"verbose" yaml:"verbose"`
}

// Settings is the fully-resolved configuration used by downstream wiring.
type Settings struct {
	Driver        Driver
	DSN           string
	ChunkInterval int64
	CacheCapacity int
	Table         hypertable.Hypertable
	Targets       []hypertable.TableRef
	Verbose       bool
}

// Load reads, validates, and resolves a configuration file.
func Load(path string) (Settings, error) {
	var settings Settings

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return settings, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return settings, fmt.Errorf("%s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return settings, fmt.Errorf("%s: %w", path, err)
		}
	default:
		return settings, fmt.Errorf("%s: unsupported config format %q", path, filepath.Ext(path))
	}

	return resolve(path, cfg)
}

func resolve(path string, cfg Config) (Settings, error) {
	var settings Settings

	driver := Driver(cfg.Catalog.Driver)
	if driver == "" {
		driver = DriverMemory
	}
	if _, ok := validDrivers[driver]; !ok {
		return settings, fmt.Errorf("%s: unknown catalog driver %q", path, cfg.Catalog.Driver)
	}
	if driver != DriverMemory && cfg.Catalog.DSN == "" {
		return settings, fmt.Errorf("%s: catalog dsn is required for driver %q", path, driver)
	}

	interval := cfg.Catalog.ChunkInterval
	if interval == 0 {
		interval = defaultChunkInterval
	}
	if interval < 0 {
		return settings, fmt.Errorf("%s: chunk_interval must be positive, got %d", path, interval)
	}

	capacity := cfg.Cache.Capacity
	if capacity == 0 {
		capacity = defaultCacheCapacity
	}
	if capacity < 0 {
		return settings, fmt.Errorf("%s: cache capacity must be positive, got %d", path, capacity)
	}

	if cfg.Hypertable.TimeColumn == "" {
		return settings, fmt.Errorf("%s: hypertable time_column is required", path)
	}
	timeType, err := hypertable.ParseColumnType(cfg.Hypertable.TimeType)
	if err != nil {
		return settings, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Hypertable.StagingTable == "" {
		return settings, fmt.Errorf("%s: hypertable staging_table is required", path)
	}

	var targets []hypertable.TableRef
	for _, name := range cfg.Hypertable.Targets {
		ref, err := parseTableRef(name)
		if err != nil {
			return settings, fmt.Errorf("%s: %w", path, err)
		}
		targets = append(targets, ref)
	}

	settings = Settings{
		Driver:        driver,
		DSN:           cfg.Catalog.DSN,
		ChunkInterval: interval,
		CacheCapacity: capacity,
		Table: hypertable.Hypertable{
			ID:         cfg.Hypertable.ID,
			TimeColumn: cfg.Hypertable.TimeColumn,
			TimeType:   timeType,
			Staging: hypertable.TableRef{
				Schema: cfg.Hypertable.StagingSchema,
				Name:   cfg.Hypertable.StagingTable,
			},
		},
		Targets: targets,
		Verbose: cfg.Verbose,
	}
	return settings, nil
}

// parseTableRef splits a "schema.table" name; a bare name gets no schema.
func parseTableRef(name string) (hypertable.TableRef, error) {
	if name == "" {
		return hypertable.TableRef{}, fmt.Errorf("empty target table name")
	}
	schema, table, found := strings.Cut(name, ".")
	if !found {
		return hypertable.TableRef{Name: schema}, nil
	}
	if schema == "" || table == "" {
		return hypertable.TableRef{}, fmt.Errorf("invalid target table name %q", name)
	}
	return hypertable.TableRef{Schema: schema, Name: table}, nil
}
