package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" driver for golang-migrate
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/logging"
	"github.com/lookout-hq/lookout/pkg/retry"
)

// DB is the application's connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config tunes the pool. Zero values fall back to the defaults below.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// SlowQuery logs statements slower than this at warn level; zero disables it.
	SlowQuery time.Duration
}

const (
	defaultMaxConnections  = 25
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
)

func (c *Config) poolConfig(logger *zap.Logger) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	pc.MaxConns = orDefault(c.MaxConnections, defaultMaxConnections)
	pc.MaxConnLifetime = orDefault(c.MaxConnLifetime, defaultMaxConnLifetime)
	pc.MaxConnIdleTime = orDefault(c.MaxConnIdleTime, defaultMaxConnIdleTime)
	if c.SlowQuery > 0 {
		pc.ConnConfig.Tracer = &slowQueryTracer{threshold: c.SlowQuery, logger: logger.Named("sql")}
	}
	return pc, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// Connect opens the pool, retrying while Postgres is still starting.
func Connect(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	pc, err := cfg.poolConfig(logger)
	if err != nil {
		return nil, err
	}

	attempt := 0
	return retry.DoWithResult(ctx, retry.StartupConfig(), func() (*DB, error) {
		attempt++
		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err == nil {
			if err = pool.Ping(ctx); err != nil {
				pool.Close()
			}
		}
		if err != nil {
			logger.Warn("Database not ready",
				zap.Int("attempt", attempt),
				zap.String("url", logging.SanitizeConnectionString(cfg.URL)),
				logging.SafeError(err))
			return nil, err
		}
		return &DB{Pool: pool}, nil
	})
}

// OpenSQL opens a database/sql handle for golang-migrate.
func OpenSQL(url string) (*sql.DB, error) {
	sqlDB, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	return sqlDB, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

type queryStartKey struct{}

type queryStart struct {
	sql string
	at  time.Time
}

// slowQueryTracer is a pgx.QueryTracer that reports statements over threshold.
type slowQueryTracer struct {
	threshold time.Duration
	logger    *zap.Logger
}

func (t *slowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, at: time.Now()})
}

func (t *slowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	if elapsed := time.Since(start.at); elapsed >= t.threshold {
		t.logger.Warn("Slow query",
			zap.Duration("elapsed", elapsed),
			zap.String("sql", compactSQL(start.sql)),
			zap.String("command", data.CommandTag.String()),
			zap.Bool("failed", data.Err != nil))
	}
}

// compactSQL collapses whitespace so multi-line statements log on one line.
func compactSQL(q string) string {
	return logging.TruncateString(strings.Join(strings.Fields(q), " "), 300)
}
