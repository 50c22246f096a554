//go:build integration

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/anatolykoptev/go_zeroview/internal/engine"
	"github.com/stretchr/testify/require"
)

// Run with: DATABASE_URL=postgres://... go test -tags integration ./internal/engine/storage/
func openTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	p, err := ConnectPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	require.NoError(t, p.CreateTables(ctx))

	_, err = p.pool.Exec(ctx, "DELETE FROM search_terms; DELETE FROM links")
	require.NoError(t, err)
	return p
}

func TestPostgresIndex(t *testing.T) {
	ctx := context.Background()
	p := openTestPostgres(t)

	_, err := p.TakeTerms(ctx, 3)
	require.ErrorIs(t, err, engine.ErrIndexEmpty)

	n, err := p.RefreshIndex(ctx, words(10))
	require.NoError(t, err)
	require.Equal(t, 10, n)

	got, err := p.TakeTerms(ctx, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)

	got, err = p.TakeTerms(ctx, 20)
	require.NoError(t, err)
	require.Len(t, got, 6)

	size, err := p.IndexSize(ctx)
	require.NoError(t, err)
	require.Zero(t, size)
}

func TestPostgresLinks(t *testing.T) {
	ctx := context.Background()
	p := openTestPostgres(t)

	a := link("aaaaaaaaaaa", "first")
	b := link("bbbbbbbbbbb", "second")
	n, err := p.InsertLinks(ctx, []engine.VideoResult{a, b})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	first, err := p.PopLink(ctx)
	require.NoError(t, err)
	second, err := p.PopLink(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []engine.VideoResult{a, b}, []engine.VideoResult{first, second})

	_, err = p.PopLink(ctx)
	require.ErrorIs(t, err, engine.ErrStoreEmpty)
	count, err := p.LinkCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}
