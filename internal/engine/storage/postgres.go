package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anatolykoptev/go_zeroview/internal/engine"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the shared-database store. Term draws and link pops take a
// table lock for the length of their transaction, so concurrent runs
// queue instead of seeing each other's half-deleted rows.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres creates a pgx pool for databaseURL and pings it.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	slog.Info("postgres connected", slog.String("addr", config.ConnConfig.Host))
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) CreateTables(ctx context.Context) error {
	ddl, err := schema("postgres.sql")
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: create tables: %w", err)
	}
	return nil
}

func (p *Postgres) RefreshIndex(ctx context.Context, words []string) (int, error) {
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "LOCK TABLE search_terms IN EXCLUSIVE MODE"); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM search_terms"); err != nil {
			return err
		}
		rows := make([][]any, len(words))
		for i, w := range words {
			rows[i] = []any{w}
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"search_terms"}, []string{"term"}, pgx.CopyFromRows(rows))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("postgres: refresh index: %w", err)
	}
	return len(words), nil
}

func (p *Postgres) TakeTerms(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, errBatchSize
	}
	var terms []string
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "LOCK TABLE search_terms IN EXCLUSIVE MODE"); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `
			DELETE FROM search_terms
			WHERE ctid IN (SELECT ctid FROM search_terms ORDER BY random() LIMIT $1)
			RETURNING term`, n)
		if err != nil {
			return err
		}
		terms, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: take terms: %w", err)
	}
	if len(terms) == 0 {
		return nil, engine.ErrIndexEmpty
	}
	return terms, nil
}

func (p *Postgres) IndexSize(ctx context.Context) (int, error) {
	return p.count(ctx, "search_terms")
}

func (p *Postgres) InsertLinks(ctx context.Context, links []engine.VideoResult) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}
	rows := make([][]any, len(links))
	for i, l := range links {
		rows[i] = []any{l.URL, l.PublishDate, l.Title, l.Views}
	}
	n, err := p.pool.CopyFrom(ctx, pgx.Identifier{"links"}, []string{"url", "date", "title", "views"}, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("postgres: insert links: %w", err)
	}
	return int(n), nil
}

func (p *Postgres) PopLink(ctx context.Context) (engine.VideoResult, error) {
	var v engine.VideoResult
	var found bool
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "LOCK TABLE links IN EXCLUSIVE MODE"); err != nil {
			return err
		}
		err := tx.QueryRow(ctx, `
			DELETE FROM links
			WHERE ctid = (SELECT ctid FROM links ORDER BY random() LIMIT 1)
			RETURNING url, date, title, views`).Scan(&v.URL, &v.PublishDate, &v.Title, &v.Views)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return engine.VideoResult{}, fmt.Errorf("postgres: pop link: %w", err)
	}
	if !found {
		return engine.VideoResult{}, engine.ErrStoreEmpty
	}
	return v, nil
}

func (p *Postgres) LinkCount(ctx context.Context) (int, error) {
	return p.count(ctx, "links")
}

func (p *Postgres) count(ctx context.Context, table string) (int, error) {
	var n int64
	if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", table, err)
	}
	return int(n), nil
}
