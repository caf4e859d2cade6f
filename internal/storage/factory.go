// Package storage provides storage implementations for telemetry metadata.
package storage

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/arolek/logmine/internal/analyzer/autotemplate"
	"github.com/arolek/logmine/internal/storage/clickhouse"
	"github.com/arolek/logmine/internal/storage/dual"
	"github.com/arolek/logmine/internal/storage/memory"
	"github.com/arolek/logmine/internal/storage/sqlite"
)

// Config holds storage configuration.
type Config struct {
	// Backend selects the storage backend: "memory", "sqlite",
	// "clickhouse", or "dual" (dual-write across two of the above, e.g.
	// migrating from ClickHouse onto SQLite).
	Backend string

	// ClickHouse-specific config
	ClickHouseAddr string

	// SQLite-specific config
	SQLitePath string

	// Autotemplate config. The sqlite backend uses both fields; the memory
	// backend uses UseAutoTemplate with autotemplate.DefaultConfig(); the
	// clickhouse backend uses neither and always reports autotemplate off.
	UseAutoTemplate bool
	AutoTemplateCfg autotemplate.Config

	// Dual-backend config, used only when Backend == "dual". Primary and
	// Secondary name any of "memory"/"sqlite"/"clickhouse"; reads are
	// served from Primary, writes go to both.
	DualPrimaryBackend   string
	DualSecondaryBackend string
}

// DefaultConfig returns default storage configuration.
func DefaultConfig() Config {
	cfg := autotemplate.DefaultConfig()
	cfg.Shards = 4
	cfg.SimThreshold = 0.7

	return Config{
		Backend:         "clickhouse",
		ClickHouseAddr:  "localhost:9000",
		UseAutoTemplate: false,
		AutoTemplateCfg: cfg,
	}
}

// NewStorage creates a storage implementation based on configuration.
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "memory":
		log.Printf("Using in-memory storage (autotemplate: %v)", cfg.UseAutoTemplate)
		return memory.NewWithAutoTemplate(cfg.UseAutoTemplate), nil

	case "sqlite":
		log.Printf("Using SQLite storage: %s (autotemplate: %v)", cfg.SQLitePath, cfg.UseAutoTemplate)

		sqliteCfg := sqlite.DefaultConfig(cfg.SQLitePath)
		sqliteCfg.UseAutoTemplate = cfg.UseAutoTemplate
		sqliteCfg.AutoTemplateCfg = cfg.AutoTemplateCfg

		store, err := sqlite.New(sqliteCfg)
		if err != nil {
			return nil, fmt.Errorf("creating SQLite store: %w", err)
		}
		return store, nil

	case "clickhouse":
		log.Printf("Using ClickHouse storage: %s (autotemplate: off, not supported by this backend)", cfg.ClickHouseAddr)
		
		chCfg := clickhouse.DefaultConfig()
		chCfg.Addr = cfg.ClickHouseAddr
		
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		
		store, err := clickhouse.NewStore(context.Background(), chCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating ClickHouse store: %w", err)
		}
		return store, nil

	case "dual":
		primaryName := cfg.DualPrimaryBackend
		if primaryName == "" {
			primaryName = "sqlite"
		}
		secondaryName := cfg.DualSecondaryBackend
		if secondaryName == "" {
			secondaryName = "clickhouse"
		}

		primaryCfg := cfg
		primaryCfg.Backend = primaryName
		primary, err := NewStorage(primaryCfg)
		if err != nil {
			return nil, fmt.Errorf("creating dual primary backend %q: %w", primaryName, err)
		}

		secondaryCfg := cfg
		secondaryCfg.Backend = secondaryName
		secondary, err := NewStorage(secondaryCfg)
		if err != nil {
			return nil, fmt.Errorf("creating dual secondary backend %q: %w", secondaryName, err)
		}

		log.Printf("Using dual-write storage: primary=%s secondary=%s", primaryName, secondaryName)
		return dual.New(dual.Config{Primary: primary, Secondary: secondary}), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, sqlite, clickhouse, dual)", cfg.Backend)
	}
}
