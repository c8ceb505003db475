// Package sqlite implements the repository interfaces on an embedded SQLite file.
//
// WHY SQLITE?
// No separate database server to install or manage: the whole store is one
// file next to the binary, or ":memory:" in tests. It is the default backend;
// set DB_DRIVER=postgres for the server-based one.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc is a pure Go translation of SQLite, so there is no CGo and no C
// compiler needed, and cross-compiling just works.
//
// CONNECTION SETTINGS:
// PRAGMAs are per connection, and sql.DB is a pool. Running "PRAGMA
// foreign_keys=ON" once would only configure whichever connection happened
// to run it. The driver's _pragma DSN parameters are applied to every
// connection it opens, so they go there instead.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sakif/vem/internal/repository"
)

// compile-time check that *DB implements every repository interface
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// execer is satisfied by both *sql.DB and *sql.Tx, so helpers can run
// either inside or outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// New opens (creating if needed) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/events.db"  → file-based database (persistent)
//   - ":memory:"        → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand new, empty database.
	// Pin the pool to one connection so all queries see the same one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn turns a path into a driver DSN carrying the per-connection pragmas.
func dsn(dbPath string) string {
	if dbPath == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)", // wait for a writer instead of failing with SQLITE_BUSY
		"_pragma=journal_mode(WAL)",  // readers don't block on a writer
	}
	return "file:" + dbPath + "?" + strings.Join(pragmas, "&")
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by GET /health.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent,
// so it runs on every start.
//
// The UNIQUE constraints are what really stop duplicate emails, duplicate
// role grants and double registrations under concurrent requests. Services
// pre-check only to give a nicer message.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			user_id       TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_roles (
			user_id    TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			role       TEXT NOT NULL CHECK (role IN ('organizer', 'attendee')),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, role)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating user_roles table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			event_id     TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			date         TEXT NOT NULL,
			time         TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			organizer_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_events_organizer_id ON events(organizer_id);
	`)
	if err != nil {
		return fmt.Errorf("creating events table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS registrations (
			id          TEXT PRIMARY KEY,
			event_id    TEXT NOT NULL REFERENCES events(event_id) ON DELETE CASCADE,
			attendee_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (event_id, attendee_id)
		);
		CREATE INDEX IF NOT EXISTS idx_registrations_attendee_id ON registrations(attendee_id);
	`)
	if err != nil {
		return fmt.Errorf("creating registrations table: %w", err)
	}

	return nil
}
