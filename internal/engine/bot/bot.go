// Package bot ties the stores, the scanner and the posting client together.
//
// Refill and PublishNext are independent entry points meant to be triggered
// by an external scheduler; each runs to completion and leaves both stores
// consistent on its own.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/anatolykoptev/go_zeroview/internal/engine"
	"github.com/anatolykoptev/go_zeroview/internal/engine/sources"
	"github.com/anatolykoptev/go_zeroview/internal/engine/zeroview"
	"github.com/google/uuid"
)

// randomTermWords is the word count of each generated random term.
const randomTermWords = 2

// TermIndex is the durable queue of search terms.
type TermIndex interface {
	RefreshIndex(ctx context.Context, words []string) (int, error)
	TakeTerms(ctx context.Context, n int) ([]string, error)
	IndexSize(ctx context.Context) (int, error)
}

// LinkStore is the durable queue of results waiting to be published.
type LinkStore interface {
	InsertLinks(ctx context.Context, links []engine.VideoResult) (int, error)
	PopLink(ctx context.Context) (engine.VideoResult, error)
	LinkCount(ctx context.Context) (int, error)
}

// Store holds both queues.
type Store interface {
	TermIndex
	LinkStore
	CreateTables(ctx context.Context) error
}

// Scanner finds zero-view videos for a batch of terms.
type Scanner interface {
	Scan(ctx context.Context, terms []string) []engine.VideoResult
}

// StatsSource rechecks a video's view count before publishing.
type StatsSource interface {
	Stats(ctx context.Context, videoID string) (engine.VideoStats, error)
}

// WordSource supplies the full candidate word list.
type WordSource interface {
	Words() ([]string, error)
}

// Poster publishes one message.
type Poster interface {
	Publish(ctx context.Context, text string) error
}

// Guard reports whether a video has been posted before.
type Guard interface {
	AlreadyPosted(ctx context.Context, videoURL string) (bool, error)
}

// Deps are the collaborators a Bot is built from. Poster may be nil for
// commands that never post; Guard is optional.
type Deps struct {
	Store   Store
	Scanner Scanner
	Stats   StatsSource
	Words   WordSource
	Poster  Poster
	Guard   Guard
	Rand    *rand.Rand
}

// Bot runs refill and publish cycles.
type Bot struct {
	store         Store
	scanner       Scanner
	stats         StatsSource
	words         WordSource
	poster        Poster
	guard         Guard
	rng           *rand.Rand
	maxViews      int64
	maxPerChannel int
}

// New builds a Bot. Threshold and per-channel cap come from cfg.
func New(cfg engine.Config, d Deps) *Bot {
	rng := d.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Bot{
		store:         d.Store,
		scanner:       d.Scanner,
		stats:         d.Stats,
		words:         d.Words,
		poster:        d.Poster,
		guard:         d.Guard,
		rng:           rng,
		maxViews:      cfg.MaxViews,
		maxPerChannel: cfg.MaxPerChannel,
	}
}

// Setup creates the tables and fills the term index from the word list.
func (b *Bot) Setup(ctx context.Context) (*engine.StatusOutput, error) {
	if err := b.store.CreateTables(ctx); err != nil {
		return nil, err
	}
	n, err := b.refresh(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("bot initialised", slog.Int("index_size", n))
	return b.Status(ctx)
}

// Status reports the size of both stores.
func (b *Bot) Status(ctx context.Context) (*engine.StatusOutput, error) {
	links, err := b.store.LinkCount(ctx)
	if err != nil {
		return nil, err
	}
	size, err := b.store.IndexSize(ctx)
	if err != nil {
		return nil, err
	}
	return &engine.StatusOutput{Links: links, IndexSize: size}, nil
}

func (b *Bot) refresh(ctx context.Context) (int, error) {
	words, err := b.words.Words()
	if err != nil {
		return 0, err
	}
	n, err := b.store.RefreshIndex(ctx, words)
	if err != nil {
		return 0, err
	}
	engine.IncrIndexRefreshes()
	return n, nil
}

// Refill scans n terms: half drawn from the index (rounded up), half random
// two-word combinations. When the index is empty it is refreshed and
// nothing is scanned in the same call.
func (b *Bot) Refill(ctx context.Context, n int) (*engine.RefillOutput, error) {
	if n <= 0 {
		return nil, fmt.Errorf("refill: term count must be positive, got %d", n)
	}
	log := slog.With(slog.String("run_id", uuid.NewString()))
	out := &engine.RefillOutput{}

	err := engine.TrackOperation(ctx, "refill", func(ctx context.Context) error {
		indexed, err := b.store.TakeTerms(ctx, (n+1)/2)
		if errors.Is(err, engine.ErrIndexEmpty) {
			size, err := b.refresh(ctx)
			if err != nil {
				return err
			}
			log.Info("search term index was empty, refreshed", slog.Int("index_size", size))
			out.Refreshed = true
			out.Message = fmt.Sprintf("search term index was empty: refreshed with %d terms, nothing scanned", size)
			return nil
		}
		if err != nil {
			return err
		}

		terms := indexed
		if k := n / 2; k > 0 {
			words, err := b.words.Words()
			if err != nil {
				return err
			}
			terms = append(terms, sources.CombineWords(b.rng, words, k, randomTermWords)...)
		}
		out.Terms = len(terms)
		log.Info("refill: scanning", slog.Int("indexed", len(indexed)), slog.Int("terms", len(terms)))

		found := b.scanner.Scan(ctx, terms)
		out.Found = len(found)
		kept := zeroview.FilterPerChannel(found, b.maxPerChannel)
		if len(kept) == 0 {
			log.Info("refill: no new links detected")
			return nil
		}
		added, err := b.store.InsertLinks(ctx, kept)
		if err != nil {
			return err
		}
		engine.AddLinksAdded(added)
		out.Added = added
		log.Info("refill: links added", slog.Int("found", len(found)), slog.Int("added", added))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Links, err = b.store.LinkCount(ctx); err != nil {
		return nil, err
	}
	if out.Message == "" {
		out.Message = fmt.Sprintf("scanned %d terms: %d zero-view videos found, %d added, %d links stored",
			out.Terms, out.Found, out.Added, out.Links)
	}
	return out, nil
}

// RefillIfLow refills only while the link store holds fewer than threshold
// links. threshold <= 0 always refills.
func (b *Bot) RefillIfLow(ctx context.Context, n, threshold int) (*engine.RefillOutput, error) {
	if threshold > 0 {
		links, err := b.store.LinkCount(ctx)
		if err != nil {
			return nil, err
		}
		if links >= threshold {
			return &engine.RefillOutput{
				Skipped: true,
				Links:   links,
				Message: fmt.Sprintf("%d links left in the store, no refill done", links),
			}, nil
		}
	}
	return b.Refill(ctx, n)
}

// PublishNext pops random links until one still has no views, then posts
// it. Links that gained views are dropped for good. engine.ErrStoreEmpty is
// returned once the store runs dry. A failed post also loses the link.
// With dryRun the text is built but not posted.
func (b *Bot) PublishNext(ctx context.Context, dryRun bool) (*engine.PublishOutput, error) {
	if b.poster == nil && !dryRun {
		return nil, errors.New("publish: no poster configured")
	}
	log := slog.With(slog.String("run_id", uuid.NewString()))
	out := &engine.PublishOutput{}

	err := engine.TrackOperation(ctx, "publish", func(ctx context.Context) error {
		v, err := b.nextFresh(ctx, log, out)
		if err != nil {
			return err
		}
		out.Video = v
		out.Text = engine.FormatPost(v)

		if dryRun {
			log.Info("publish: dry run", slog.String("url", v.URL))
			out.Message = "dry run, not posted: " + v.URL
			return nil
		}
		if err := b.poster.Publish(ctx, out.Text); err != nil {
			log.Error("publish: post failed, link dropped", slog.String("url", v.URL), slog.Any("error", err))
			out.Message = fmt.Sprintf("post failed for %s: %v", v.URL, err)
			return fmt.Errorf("%w: %w", engine.ErrPublishFailed, err)
		}
		out.Published = true
		out.Message = "published " + v.URL
		log.Info("publish: posted", slog.String("url", v.URL), slog.Int("discarded", out.Discarded))
		return nil
	})

	if errors.Is(err, engine.ErrStoreEmpty) {
		log.Info("publish: link store is empty, nothing to publish", slog.Int("discarded", out.Discarded))
		out.Message = fmt.Sprintf("link store is empty, nothing to publish (%d stale links discarded)", out.Discarded)
	}
	return out, err
}

// nextFresh pops until it finds a link whose views are still within the
// threshold. Every popped link that fails the recheck is counted in out.
func (b *Bot) nextFresh(ctx context.Context, log *slog.Logger, out *engine.PublishOutput) (engine.VideoResult, error) {
	for {
		v, err := b.store.PopLink(ctx)
		if err != nil {
			return engine.VideoResult{}, err
		}
		if reason := b.recheck(ctx, log, v); reason != "" {
			out.Discarded++
			engine.IncrLinksDiscarded()
			log.Info("publish: link discarded", slog.String("url", v.URL), slog.String("reason", reason))
			continue
		}
		return v, nil
	}
}

// recheck returns why v must not be published, or "" if it is still fresh.
func (b *Bot) recheck(ctx context.Context, log *slog.Logger, v engine.VideoResult) string {
	id := v.VideoID()
	if id == "" {
		return "no video id in url"
	}
	st, err := b.stats.Stats(ctx, id)
	if err != nil {
		engine.IncrQueryFailures()
		log.Warn("publish: recheck failed", slog.String("url", v.URL), slog.Any("error", err))
		return "recheck failed"
	}
	if st.Views > b.maxViews {
		return fmt.Sprintf("%d views", st.Views)
	}
	if b.guard != nil {
		posted, err := b.guard.AlreadyPosted(ctx, v.URL)
		if err != nil {
			log.Warn("publish: duplicate check failed", slog.Any("error", err))
		} else if posted {
			return "already posted"
		}
	}
	return ""
}

// Search runs a dry scan over n random words from the list and touches
// neither store.
func (b *Bot) Search(ctx context.Context, n int) (*engine.SearchOutput, error) {
	if n <= 0 {
		return nil, fmt.Errorf("search: term count must be positive, got %d", n)
	}
	words, err := b.words.Words()
	if err != nil {
		return nil, err
	}
	terms := sources.SampleWords(b.rng, words, n)
	results := b.scanner.Scan(ctx, terms)
	if results == nil {
		results = []engine.VideoResult{}
	}
	return &engine.SearchOutput{Terms: terms, Results: results}, nil
}
