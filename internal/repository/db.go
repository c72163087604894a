package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DefaultDSN = "file:travelers.db?_pragma=busy_timeout(5000)"
	MemoryDSN  = "file::memory:?cache=shared"
)

type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// DB is an ent SQL driver over either modernc SQLite or a pgx pool.
type DB struct {
	drv     *entsql.Driver
	dialect string
	pool    *pgxpool.Pool
	log     *slog.Logger
}

// Open picks the driver from the DSN: postgres:// and postgresql:// go through pgx,
// everything else is a SQLite file (or memory) DSN. An empty DSN means DefaultDSN.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		dsn = DefaultDSN
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}

	if isPostgres(dsn) {
		return openPostgres(ctx, dsn, cfg, logger)
	}

	logger.Info("db.open", "driver", "sqlite", "dsn", dsn)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("db.open.failed", "driver", "sqlite", "err", err)
		return nil, err
	}
	// one writer; also keeps a shared in-memory database alive for the pool's lifetime
	sqldb.SetMaxOpenConns(1)
	pctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := sqldb.PingContext(pctx); err != nil {
		_ = sqldb.Close()
		logger.Error("db.open.failed", "driver", "sqlite", "err", err)
		return nil, err
	}
	return &DB{drv: entsql.OpenDB(dialect.SQLite, sqldb), dialect: dialect.SQLite, log: logger}, nil
}

func openPostgres(ctx context.Context, dsn string, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("db.open", "driver", "pgx")
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("db.open.failed", "driver", "pgx", "err", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "traveler-renamer"

	dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dctx, pc)
	if err != nil {
		logger.Error("db.open.failed", "driver", "pgx", "err", err)
		return nil, err
	}
	if err := pool.Ping(dctx); err != nil {
		pool.Close()
		logger.Error("db.open.failed", "driver", "pgx", "err", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for ent's SQL driver
	sqldb := stdlib.OpenDBFromPool(pool)
	return &DB{drv: entsql.OpenDB(dialect.Postgres, sqldb), dialect: dialect.Postgres, pool: pool, log: logger}, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Dialect is the ent dialect name (sqlite3 or postgres).
func (db *DB) Dialect() string { return db.dialect }

func (db *DB) builder() *entsql.DialectBuilder { return entsql.Dialect(db.dialect) }

// Migrate creates the batch tables when missing.
func (db *DB) Migrate(ctx context.Context) error {
	b := db.builder()
	stmts := []entsql.Querier{
		b.CreateTable(tableRun).IfNotExists().
			Columns(
				b.Column("id").Type("varchar(36)").Attr("NOT NULL"),
				b.Column("started_at").Type("bigint").Attr("NOT NULL"),
				b.Column("finished_at").Type("bigint").Attr("NOT NULL"),
				b.Column("total").Type("integer").Attr("NOT NULL"),
				b.Column("succeeded").Type("integer").Attr("NOT NULL"),
				b.Column("partial").Type("integer").Attr("NOT NULL"),
				b.Column("failed").Type("integer").Attr("NOT NULL"),
			).
			PrimaryKey("id"),
		b.CreateTable(tableFile).IfNotExists().
			Columns(
				b.Column("batch_id").Type("varchar(36)").Attr("NOT NULL"),
				b.Column("position").Type("integer").Attr("NOT NULL"),
				b.Column("original_name").Type("text").Attr("NOT NULL"),
				b.Column("new_name").Type("text").Attr("NOT NULL"),
				b.Column("status").Type("text").Attr("NOT NULL"),
				b.Column("customer").Type("text").Attr("NOT NULL"),
				b.Column("part_number").Type("text").Attr("NOT NULL"),
				b.Column("description").Type("text").Attr("NOT NULL"),
				b.Column("error_message").Type("text").Attr("NOT NULL"),
			).
			PrimaryKey("batch_id", "position"),
	}
	for _, st := range stmts {
		q, args := st.Query()
		if _, err := db.drv.DB().ExecContext(ctx, q, args...); err != nil {
			db.log.Error("db.migrate.failed", "query", q, "err", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	db.log.Debug("db.migrate.ok", "dialect", db.dialect)
	return nil
}

// HealthCheck pings the database.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.drv.DB().PingContext(ctx)
}

// Close closes the database connections gracefully
func (db *DB) Close() error {
	db.log.Info("db.close")
	err := db.drv.Close()
	if db.pool != nil {
		db.pool.Close()
	}
	return err
}
