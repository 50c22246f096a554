package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go_zeroview/internal/engine"
	_ "modernc.org/sqlite"
)

const busyRetries = 3

// SQLite is the file-backed store.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the database at path with WAL journaling
// and a busy timeout, creating parent directories as needed.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// CreateTables creates both tables if they do not exist.
func (s *SQLite) CreateTables(ctx context.Context) error {
	ddl, err := schema("sqlite.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: create tables: %w", err)
	}
	slog.Debug("sqlite: tables ready", slog.String("path", s.path))
	return nil
}

func (s *SQLite) RefreshIndex(ctx context.Context, words []string) (int, error) {
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM search_terms"); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO search_terms (term) VALUES (?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, w := range words {
			if _, err := stmt.ExecContext(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite: refresh index: %w", err)
	}
	return len(words), nil
}

func (s *SQLite) TakeTerms(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, errBatchSize
	}
	var terms []string
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		terms = terms[:0]
		rows, err := tx.QueryContext(ctx, `
			DELETE FROM search_terms
			WHERE rowid IN (SELECT rowid FROM search_terms ORDER BY RANDOM() LIMIT ?)
			RETURNING term`, n)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				return err
			}
			terms = append(terms, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: take terms: %w", err)
	}
	if len(terms) == 0 {
		return nil, engine.ErrIndexEmpty
	}
	return terms, nil
}

func (s *SQLite) IndexSize(ctx context.Context) (int, error) {
	return s.count(ctx, "search_terms")
}

func (s *SQLite) InsertLinks(ctx context.Context, links []engine.VideoResult) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO links (url, date, title, views) VALUES (?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, l := range links {
			if _, err := stmt.ExecContext(ctx, l.URL, l.PublishDate, l.Title, l.Views); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert links: %w", err)
	}
	return len(links), nil
}

func (s *SQLite) PopLink(ctx context.Context) (engine.VideoResult, error) {
	var v engine.VideoResult
	var found bool
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			DELETE FROM links
			WHERE rowid = (SELECT rowid FROM links ORDER BY RANDOM() LIMIT 1)
			RETURNING url, date, title, views`).Scan(&v.URL, &v.PublishDate, &v.Title, &v.Views)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return engine.VideoResult{}, fmt.Errorf("sqlite: pop link: %w", err)
	}
	if !found {
		return engine.VideoResult{}, engine.ErrStoreEmpty
	}
	return v, nil
}

func (s *SQLite) LinkCount(ctx context.Context) (int, error) {
	return s.count(ctx, "links")
}

func (s *SQLite) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", table, err)
	}
	return n, nil
}

// runTx executes fn in a transaction, retrying up to three times with
// 100/200/300ms backoff while another process holds the write lock.
func (s *SQLite) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	var err error
	for i := range busyRetries {
		err = s.runOnce(ctx, fn)
		if err == nil || !isBusy(err) || i == busyRetries-1 {
			return err
		}
		slog.Debug("sqlite: busy, retrying", slog.Int("attempt", i+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(100*(i+1)) * time.Millisecond):
		}
	}
	return err
}

func (s *SQLite) runOnce(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// isBusy matches the driver's lock-contention messages.
func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
