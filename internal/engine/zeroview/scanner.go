// Package zeroview finds videos nobody has watched yet.
//
// Each term is searched inside a random publish-date window, ordered by view
// count. The search client hands back the terminal page of that ordering and
// the scanner walks it from the least viewed end, collecting items until the
// first one with views above the threshold.
package zeroview

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/anatolykoptev/go_zeroview/internal/engine"
)

// Searcher is the part of the YouTube client the scanner needs.
type Searcher interface {
	Search(ctx context.Context, term, before, after string) (*engine.SearchPage, error)
	Stats(ctx context.Context, videoID string) (engine.VideoStats, error)
}

// Scanner turns search terms into zero-view results.
type Scanner struct {
	search     Searcher
	rng        *rand.Rand
	now        func() time.Time
	before     time.Time // fixed upper bound; zero means random per term
	maxViews   int64
	windowDays int
}

// Option customises a Scanner.
type Option func(*Scanner)

// WithRand sets the random source used for windows.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scanner) { s.rng = rng }
}

// WithClock sets the clock that bounds random windows.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithBefore pins every window's upper bound to before.
func WithBefore(before time.Time) Option {
	return func(s *Scanner) { s.before = before }
}

// NewScanner wires a scanner to a search client. Threshold and window
// length come from cfg.
func NewScanner(search Searcher, cfg engine.Config, opts ...Option) *Scanner {
	cfg = cfg.WithDefaults()
	s := &Scanner{
		search:     search,
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:        time.Now,
		maxViews:   cfg.MaxViews,
		windowDays: cfg.WindowDays,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Window returns the publish-date range for the next query.
func (s *Scanner) Window() Window {
	before := s.before
	if before.IsZero() {
		before = ChooseRandomDate(s.rng, s.now())
	}
	return NewWindow(before, s.windowDays)
}

// Scan searches every term and concatenates the per-term results in term
// order. A term whose search or stats lookup fails contributes nothing;
// the failure is logged and counted.
func (s *Scanner) Scan(ctx context.Context, terms []string) []engine.VideoResult {
	var results []engine.VideoResult
	for i, term := range terms {
		if ctx.Err() != nil {
			slog.Warn("zeroview: scan cancelled", slog.Int("remaining", len(terms)-i), slog.Any("error", ctx.Err()))
			break
		}
		found, err := s.ScanTerm(ctx, term)
		if err != nil {
			engine.IncrQueryFailures()
			slog.Warn("zeroview: term skipped",
				slog.String("term", engine.TruncateRunes(term, 60, "...")),
				slog.Any("error", err))
			continue
		}
		slog.Debug("zeroview: term scanned", slog.String("term", term), slog.Int("found", len(found)))
		results = append(results, found...)
	}
	return results
}

// ScanTerm checks the terminal page for one term in reverse order. The first
// item above the view threshold ends the walk, even if items further up the
// page have fewer views. Live and upcoming broadcasts are skipped.
func (s *Scanner) ScanTerm(ctx context.Context, term string) ([]engine.VideoResult, error) {
	w := s.Window()
	page, err := s.search.Search(ctx, term, w.Before, w.After)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}
	if page == nil {
		return nil, nil
	}

	var found []engine.VideoResult
	for i := len(page.Items) - 1; i >= 0; i-- {
		it := page.Items[i]
		st, err := s.search.Stats(ctx, it.VideoID)
		if err != nil {
			return nil, fmt.Errorf("stats %s: %w", it.VideoID, err)
		}
		if st.Views > s.maxViews {
			break
		}
		if it.IsLive() {
			continue
		}
		found = append(found, engine.VideoResult{
			Title:       it.Title,
			URL:         engine.WatchURL(it.VideoID),
			Views:       st.Views,
			PublishDate: it.PublishedAt,
			Channel:     it.ChannelTitle,
		})
	}
	return found, nil
}

// FilterPerChannel keeps at most limit results from any one channel,
// preserving order. Results without a channel are never capped.
// limit <= 0 disables the cap.
func FilterPerChannel(results []engine.VideoResult, limit int) []engine.VideoResult {
	if limit <= 0 {
		return results
	}
	seen := make(map[string]int)
	out := make([]engine.VideoResult, 0, len(results))
	for _, r := range results {
		if r.Channel != "" {
			if seen[r.Channel] >= limit {
				continue
			}
			seen[r.Channel]++
		}
		out = append(out, r)
	}
	return out
}
