// Package sqlite implements repository.AccountRepository on SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the binary needs no C toolchain
// and cross-compiles like any other Go program.
//
// The database enforces both uniqueness rules (nickname, vfile token). Two
// concurrent signups for the same nickname race on the INSERT; exactly one
// wins and the other gets a constraint error, which Create reports as
// apperror.Conflict.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// busyTimeoutMillis is how long a writer waits on a locked database before
// giving up with SQLITE_BUSY.
const busyTimeoutMillis = 5000

// New opens (or creates) the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/social-host.db" → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" gets its own private database, so the
	// pool must never grow past one connection.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a writer holds the lock.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it idempotent,
// so it runs on every startup.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS hosted_files (
			id              TEXT PRIMARY KEY,
			nickname        TEXT NOT NULL UNIQUE,
			vfile_token     TEXT NOT NULL UNIQUE,
			vfile_timestamp INTEGER NOT NULL,
			vfile_signature TEXT NOT NULL,
			file_content    TEXT NOT NULL DEFAULT '',
			redirect_url    TEXT,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_access     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_hosted_files_last_access ON hosted_files(last_access);
	`)
	if err != nil {
		return fmt.Errorf("creating hosted_files table: %w", err)
	}
	return nil
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

func dsn(dbPath string) string {
	if isMemory(dbPath) {
		return dbPath
	}
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", dbPath, sep, busyTimeoutMillis)
}

// uniqueViolation reports whether err is a UNIQUE constraint failure and,
// if so, which hosted_files column it names.
func uniqueViolation(err error) (column string, ok bool) {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return "", false
	}
	if se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE && se.Code() != sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return "", false
	}
	// Message shape: "UNIQUE constraint failed: hosted_files.nickname"
	msg := se.Error()
	for _, c := range []string{"nickname", "vfile_token", "id"} {
		if strings.Contains(msg, "hosted_files."+c) {
			return c, true
		}
	}
	return "", true
}
