// go_zeroview finds YouTube videos with zero views and posts them.
//
// Commands:
//
//	init                     create tables and fill the search-term index
//	refill N [-if-below T]   scan N terms and store zero-view videos
//	publish [-dry-run]       recheck and post one stored video
//	status                   count stored links and remaining terms
//	search N                 dry scan of N random words, nothing stored
//	serve                    run as MCP server (HTTP or stdio)
//
// Each command is meant to be run by cron; configuration comes from the
// environment and an optional keys file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go_zeroview/internal/engine"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8892")
)

const usage = `usage: go_zeroview <command> [args]

commands:
  init                     create tables and fill the search-term index
  refill N [-if-below T]   scan N search terms for zero-view videos
  publish [-dry-run]       recheck and post one stored video
  status                   show stored link and search-term counts
  search N                 scan N random words and print results only
  serve                    run the MCP server
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	closeLog, err := setupLogging(env.Str("LOG_LEVEL", "info"), env.Str("LOG_FILE", ""))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := run(ctx, cfg, os.Args[1], os.Args[2:], os.Stdout)
	stop()
	closeLog.Close()
	os.Exit(code)
}

// run dispatches one command and returns the process exit code.
func run(ctx context.Context, cfg engine.Config, cmd string, args []string, stdout io.Writer) int {
	var err error
	switch cmd {
	case "init":
		err = cmdInit(ctx, cfg, stdout)
	case "refill":
		err = cmdRefill(ctx, cfg, args, stdout)
	case "publish":
		err = cmdPublish(ctx, cfg, args, stdout)
	case "status":
		err = cmdStatus(ctx, cfg, stdout)
	case "search":
		err = cmdSearch(ctx, cfg, args, stdout)
	case "serve":
		err = cmdServe(ctx, cfg)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if err == nil {
		return 0
	}

	var cfgErr *engine.ConfigError
	if errors.As(err, &cfgErr) {
		slog.Error("configuration error", slog.Any("missing", cfgErr.Missing))
		fmt.Fprintln(os.Stderr, cfgErr)
		return 1
	}
	slog.Error(cmd+" failed", slog.Any("error", err))
	fmt.Fprintln(os.Stderr, err)
	return 1
}

func loadConfig() (engine.Config, error) {
	c := engine.Config{
		DatabasePath:          env.Str("DATABASE_PATH", "bot-data/links.db"),
		DatabaseURL:           env.Str("DATABASE_URL", ""),
		WordListPath:          env.Str("WORD_LIST", "common.txt"),
		YouTubeAPIKey:         env.Str("GOOGLE_API_KEY", ""),
		YouTubeAPIKeyFallback: env.Str("GOOGLE_API_KEY_FALLBACK", ""),
		YouTubeAPIBase:        env.Str("YOUTUBE_API_BASE", engine.DefaultYouTubeAPIBase),
		YouTubeLanguage:       env.Str("YOUTUBE_LANGUAGE", engine.DefaultLanguage),
		YouTubeQPS:            env.Float("YOUTUBE_QPS", 0),
		MaxPages:              env.Int("MAX_PAGES", engine.DefaultMaxPages),
		MaxViews:              int64(env.Int("MAX_VIEWS", 0)),
		MissingViewsSentinel:  int64(env.Int("MISSING_VIEWS_SENTINEL", engine.DefaultMissingViewsSentinel)),
		WindowDays:            env.Int("WINDOW_DAYS", engine.DefaultWindowDays),
		MaxPerChannel:         env.Int("MAX_PER_CHANNEL", 2),
		TwitterAPIKey:         env.Str("TWITTER_API_KEY", ""),
		TwitterAPISecret:      env.Str("TWITTER_API_SECRET", ""),
		TwitterOAuthToken:     env.Str("TWITTER_OAUTH_TOKEN", ""),
		TwitterOAuthSecret:    env.Str("TWITTER_OAUTH_SECRET", ""),
		TwitterAPIBase:        env.Str("TWITTER_API_BASE", engine.DefaultTwitterAPIBase),
		TwitterAccounts:       env.Str("TWITTER_ACCOUNTS", ""),
		FetchTimeout:          env.Duration("FETCH_TIMEOUT", 15*time.Second),
	}

	keys, err := engine.LoadKeys(env.Str("KEYS_FILE", "keys.json"))
	if err != nil {
		return c, err
	}
	keys.Apply(&c)
	return c.WithDefaults(), nil
}

// setupLogging installs the default slog handler. Output goes to stderr, or
// is appended to file when one is named.
func setupLogging(level, file string) (io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = slog.LevelInfo
	}
	var w io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return closer, nil
}

// parseArgs parses flags that may appear before or after positional
// arguments and returns the positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return pos, nil
		}
		pos = append(pos, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

// positiveArg parses the first positional argument as a positive count.
func positiveArg(pos []string, name string) (int, error) {
	if len(pos) < 1 {
		return 0, fmt.Errorf("%s: missing N", name)
	}
	n, err := strconv.Atoi(pos[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: N must be a positive integer, got %q", name, pos[0])
	}
	return n, nil
}
