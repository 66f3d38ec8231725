// Package store is the embedded relational persistence layer: raw
// entity upserts, the stage memoization table, and the query surface
// the scraper and stage engine read from. Grounded on the teacher's
// database/database.go connection setup, generalized to WAL mode,
// foreign key enforcement, and an embedded migration runner.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"

	"discord-marketing/pipeline/errkind"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a single SQLite connection. All writes are expected to
// come from one goroutine (spec's single-writer discipline); an
// OS-level advisory lock additionally prevents two processes from
// opening the same file for writing at once.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open creates path's directory and file if absent, acquires an
// exclusive process lock on path, enables foreign keys and WAL mode,
// and applies all pending migrations. The returned Store must be
// closed by the caller on every exit path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errkind.Wrap(err, errkind.Store, "create database directory")
	}

	lockPath := path + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Store, "acquire store lock")
	}
	if !locked {
		return nil, errkind.New(errkind.Store, fmt.Sprintf("store %s is already open by another process", path))
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, errkind.Wrap(err, errkind.Store, "open database")
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		_ = lock.Unlock()
		return nil, errkind.Wrap(err, errkind.Store, "connect to database")
	}

	s := &Store{db: db, path: path, lock: lock}
	if err := s.migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database connection and the process lock.
func (s *Store) Close() error {
	err := s.db.Close()
	if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}

// Path returns the file path this store was opened with.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return errkind.Wrap(err, errkind.Store, "create migrations table")
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return errkind.Wrap(err, errkind.Store, "read embedded migrations")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		row := s.db.QueryRow(`SELECT COUNT(1) FROM _migrations WHERE name = ?`, name)
		if err := row.Scan(&applied); err != nil {
			return errkind.Wrap(err, errkind.Store, "check migration status")
		}
		if applied > 0 {
			continue
		}

		contents, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return errkind.Wrap(err, errkind.Store, "read migration "+name)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return errkind.Wrap(err, errkind.Store, "begin migration transaction")
		}
		if _, err := tx.Exec(string(contents)); err != nil {
			tx.Rollback()
			return errkind.Wrap(err, errkind.Store, "apply migration "+name)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations (name, applied_at) VALUES (?, ?)`, name, time.Now().UTC()); err != nil {
			tx.Rollback()
			return errkind.Wrap(err, errkind.Store, "record migration "+name)
		}
		if err := tx.Commit(); err != nil {
			return errkind.Wrap(err, errkind.Store, "commit migration "+name)
		}
	}
	return nil
}

// ExecContext exposes the underlying connection for callers
// constructing ad-hoc statements outside the typed helpers below
// (e.g. export queries with dynamic filters).
func (s *Store) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// QueryContext exposes the underlying connection for read paths.
func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}
