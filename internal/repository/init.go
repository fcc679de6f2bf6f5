package repository

import (
	"context"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/submissions-pipeline/db/migrate"
	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
)

// DB bundles the driver the repositories use with the pool behind it.
type DB struct {
	Driver *entsql.Driver
	Pool   *pgxpool.Pool // nil for SQLite
	logger *slog.Logger
}

// Close releases the driver and pool.
func (d *DB) Close() {
	Close(d.Driver, d.Pool, d.logger)
}

// Init opens Postgres, or SQLite when inmem is set, and applies the schema
// when auto migration is enabled. In-memory databases are always migrated.
func Init(ctx context.Context, cfg common.DatabaseConfig, inmem bool, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db := &DB{logger: logger}
	if inmem {
		drv, err := OpenSQLite(ctx, cfg.SQLiteDSN, logger)
		if err != nil {
			return nil, err
		}
		db.Driver = drv
	} else {
		drv, pool, err := Open(ctx, Config{
			DSN:              cfg.DSN,
			MaxConns:         cfg.MaxConns,
			MinConns:         cfg.MinConns,
			MaxConnLifetime:  cfg.MaxConnLifetime,
			MaxConnIdleTime:  cfg.MaxConnIdleTime,
			DialTimeout:      cfg.DialTimeout,
			StatementTimeout: cfg.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		db.Driver, db.Pool = drv, pool
	}

	if inmem || cfg.AutoMigrate {
		if err := migrate.Create(ctx, db.Driver); err != nil {
			logger.Error("schema migration failed", "error", err)
			db.Close()
			return nil, err
		}
		logger.Info("schema migrated")
	}
	return db, nil
}
