package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_zeroview/internal/botserver"
	"github.com/anatolykoptev/go_zeroview/internal/engine"
	"github.com/anatolykoptev/go_zeroview/internal/engine/bot"
	"github.com/anatolykoptev/go_zeroview/internal/engine/sources"
	"github.com/anatolykoptev/go_zeroview/internal/engine/storage"
	"github.com/anatolykoptev/go_zeroview/internal/engine/zeroview"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// openStore uses Postgres when DATABASE_URL is set, SQLite otherwise.
func openStore(ctx context.Context, cfg engine.Config) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		return storage.ConnectPostgres(ctx, cfg.DatabaseURL)
	}
	return storage.OpenSQLite(cfg.DatabasePath)
}

// newBot wires the YouTube client, scanner and word list around store.
// A poster is attached only when withPoster is set.
func newBot(ctx context.Context, cfg engine.Config, store storage.Store, withPoster bool) *bot.Bot {
	yt := sources.NewYouTube(cfg)
	d := bot.Deps{
		Store:   store,
		Scanner: zeroview.NewScanner(yt, cfg),
		Stats:   yt,
		Words:   sources.WordList{Path: cfg.WordListPath},
	}
	if withPoster {
		d.Poster = sources.NewTwitterPoster(ctx, cfg)
		if cfg.TwitterAccounts != "" {
			guard, err := sources.NewTwitterGuard(cfg.TwitterAccounts)
			if err != nil {
				slog.Warn("duplicate guard disabled", slog.Any("error", err))
			} else {
				d.Guard = guard
			}
		}
	}
	return bot.New(cfg, d)
}

func cmdInit(ctx context.Context, cfg engine.Config, stdout io.Writer) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := newBot(ctx, cfg, store, false).Setup(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "initialised: %d search terms in the index, %d links stored\n", st.IndexSize, st.Links)
	return nil
}

func cmdRefill(ctx context.Context, cfg engine.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("refill", flag.ContinueOnError)
	ifBelow := fs.Int("if-below", 0, "only refill when fewer than this many links are stored")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	n, err := positiveArg(pos, "refill")
	if err != nil {
		return err
	}
	if err := cfg.Validate(engine.NeedYouTube); err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	out, err := newBot(ctx, cfg, store, false).RefillIfLow(ctx, n, *ifBelow)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, out.Message)
	return nil
}

func cmdPublish(ctx context.Context, cfg engine.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "recheck and print the next post without publishing it")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	needs := engine.NeedYouTube
	if !*dryRun {
		needs |= engine.NeedTwitter
	}
	if err := cfg.Validate(needs); err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	out, err := newBot(ctx, cfg, store, !*dryRun).PublishNext(ctx, *dryRun)
	switch {
	case errors.Is(err, engine.ErrStoreEmpty), errors.Is(err, engine.ErrPublishFailed):
		// Reported, not fatal.
		fmt.Fprintln(stdout, out.Message)
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintln(stdout, out.Text)
	if out.Discarded > 0 {
		fmt.Fprintf(stdout, "(%d stale links discarded)\n", out.Discarded)
	}
	return nil
}

func cmdStatus(ctx context.Context, cfg engine.Config, stdout io.Writer) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := newBot(ctx, cfg, store, false).Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d links and %d search terms left in the store\n", st.Links, st.IndexSize)
	return nil
}

func cmdSearch(ctx context.Context, cfg engine.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	n, err := positiveArg(pos, "search")
	if err != nil {
		return err
	}
	if err := cfg.Validate(engine.NeedYouTube); err != nil {
		return err
	}

	// The dry scan never touches the stores.
	out, err := newBot(ctx, cfg, nil, false).Search(ctx, n)
	if err != nil {
		return err
	}
	for _, v := range out.Results {
		fmt.Fprintf(stdout, "%s\n%s\n%s\n%s\n\n", v.Title, v.Channel, v.URL, v.PublishDate)
	}
	fmt.Fprintf(stdout, "%d zero-view videos from %d terms\n", len(out.Results), len(out.Terms))
	return nil
}

func cmdServe(ctx context.Context, cfg engine.Config) error {
	if err := cfg.Validate(engine.NeedYouTube); err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.CreateTables(ctx); err != nil {
		return err
	}

	canPost := cfg.Validate(engine.NeedTwitter) == nil
	if !canPost {
		slog.Warn("twitter credentials missing, zeroview_publish limited to dry runs")
	}

	slog.Info("starting go_zeroview", slog.String("port", mcpPort))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_zeroview",
		Version: version,
	}, nil)

	botserver.RegisterTools(server, newBot(ctx, cfg, store, canPost))
	slog.Info("tools registered", slog.Int("count", botserver.ToolCount))

	return mcpserver.Run(server, mcpserver.Config{
		Name:         "go_zeroview",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	})
}
