// Package storage persists the search-term index and the link store.
//
// Two backends share one contract: SQLite (the default, a single local file)
// and Postgres (selected by DATABASE_URL). Every read-modify-write runs as one
// transaction so overlapping runs never hand out the same row twice.
package storage

import (
	"context"
	"embed"
	"errors"

	"github.com/anatolykoptev/go_zeroview/internal/engine"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Store is implemented by *SQLite and *Postgres.
type Store interface {
	CreateTables(ctx context.Context) error

	// RefreshIndex replaces every search term with words and returns the
	// new index size.
	RefreshIndex(ctx context.Context, words []string) (int, error)
	// TakeTerms removes and returns up to n random terms.
	// It fails with engine.ErrIndexEmpty when the index has no rows.
	TakeTerms(ctx context.Context, n int) ([]string, error)
	IndexSize(ctx context.Context) (int, error)

	// InsertLinks appends results without deduplication.
	InsertLinks(ctx context.Context, links []engine.VideoResult) (int, error)
	// PopLink removes and returns one random link.
	// It fails with engine.ErrStoreEmpty when the store has no rows.
	PopLink(ctx context.Context) (engine.VideoResult, error)
	LinkCount(ctx context.Context) (int, error)

	Close() error
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Postgres)(nil)
)

var errBatchSize = errors.New("batch size must be positive")

func schema(name string) (string, error) {
	data, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
