// Package postgres implements the repository interfaces on PostgreSQL through
// a pgx connection pool. Select it with DB_DRIVER=postgres and DATABASE_URL.
//
// It mirrors the sqlite package query for query; the differences are the
// placeholder style ($1 instead of ?), native UUID and TIMESTAMPTZ columns,
// and how driver errors are recognised (SQLSTATE codes on *pgconn.PgError).
package postgres

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/vem/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// compile-time check that *DB implements every repository interface
var _ repository.Store = (*DB)(nil)

// DB wraps a pgx pool and provides repository methods.
type DB struct {
	pool *pgxpool.Pool
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var (
	_ execer = (*pgxpool.Pool)(nil)
	_ execer = (pgx.Tx)(nil)
)

// New connects to dsn, verifies the connection and applies migrations.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping database: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}

	logger.Info("PostgreSQL connection pool established",
		slog.String("host", config.ConnConfig.Host),
		slog.String("database", config.ConnConfig.Database),
	)
	return &DB{pool: pool}, nil
}

// Close releases every pooled connection.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// Ping reports whether the database is reachable. Used by GET /health.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// migrate runs embedded SQL migrations in name order (001_schema.sql, 002_...).
// Every statement is written to be re-runnable.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
	}
	return nil
}
