package zeroview

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/anatolykoptev/go_zeroview/internal/engine"
)

type fakeSearcher struct {
	pages    map[string]*engine.SearchPage // term -> terminal page
	views    map[string]int64              // videoId -> views
	failTerm map[string]bool
	failStat map[string]bool

	windows    []Window
	statsCalls []string
}

func (f *fakeSearcher) Search(_ context.Context, term, before, after string) (*engine.SearchPage, error) {
	f.windows = append(f.windows, Window{Before: before, After: after})
	if f.failTerm[term] {
		return nil, errors.New("encoding failure")
	}
	return f.pages[term], nil
}

func (f *fakeSearcher) Stats(_ context.Context, id string) (engine.VideoStats, error) {
	f.statsCalls = append(f.statsCalls, id)
	if f.failStat[id] {
		return engine.VideoStats{}, errors.New("stats timeout")
	}
	return engine.VideoStats{Views: f.views[id]}, nil
}

func item(id string) engine.SearchItem {
	return engine.SearchItem{
		VideoID:              id,
		Title:                "title " + id,
		ChannelTitle:         "chan " + id,
		PublishedAt:          "2013-02-21T20:51:06.000Z",
		LiveBroadcastContent: "none",
	}
}

func page(items ...engine.SearchItem) *engine.SearchPage {
	return &engine.SearchPage{Items: items}
}

func newTestScanner(f *fakeSearcher, opts ...Option) *Scanner {
	opts = append([]Option{
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(func() time.Time { return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC) }),
	}, opts...)
	return NewScanner(f, engine.Config{}, opts...)
}

func ids(results []engine.VideoResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.VideoID()
	}
	return out
}

const (
	idA = "aaaaaaaaaaa"
	idB = "bbbbbbbbbbb"
	idC = "ccccccccccc"
	idD = "ddddddddddd"
)

func TestScanShortCircuitAtLastItem(t *testing.T) {
	f := &fakeSearcher{
		pages: map[string]*engine.SearchPage{"peppery": page(item(idA), item(idB), item(idC))},
		views: map[string]int64{idA: 0, idB: 0, idC: 3},
	}
	got := newTestScanner(f).Scan(context.Background(), []string{"peppery"})
	if len(got) != 0 {
		t.Errorf("expected zero results, got %v", ids(got))
	}
	if len(f.statsCalls) != 1 || f.statsCalls[0] != idC {
		t.Errorf("stats calls = %v, want only %s", f.statsCalls, idC)
	}
}

func TestScanReverseOrder(t *testing.T) {
	f := &fakeSearcher{
		pages: map[string]*engine.SearchPage{"t": page(item(idA), item(idB), item(idC), item(idD))},
		views: map[string]int64{idA: 0, idB: 7, idC: 0, idD: 0},
	}
	got := newTestScanner(f).Scan(context.Background(), []string{"t"})
	want := []string{idD, idC}
	if g := ids(got); len(g) != 2 || g[0] != want[0] || g[1] != want[1] {
		t.Errorf("results = %v, want %v", g, want)
	}
	for _, r := range got {
		if r.Views != 0 {
			t.Errorf("result %s has %d views", r.URL, r.Views)
		}
		if r.Channel == "" || r.PublishDate == "" || r.Title == "" {
			t.Errorf("incomplete result %+v", r)
		}
	}
}

func TestScanSkipsLive(t *testing.T) {
	live := item(idB)
	live.LiveBroadcastContent = "upcoming"
	f := &fakeSearcher{
		pages: map[string]*engine.SearchPage{"t": page(item(idA), live, item(idC))},
		views: map[string]int64{},
	}
	got := newTestScanner(f).Scan(context.Background(), []string{"t"})
	if g := ids(got); len(g) != 2 || g[0] != idC || g[1] != idA {
		t.Errorf("results = %v, want [%s %s]", g, idC, idA)
	}
	if len(f.statsCalls) != 3 {
		t.Errorf("live items still get a stats lookup, got %d calls", len(f.statsCalls))
	}
}

func TestScanThreshold(t *testing.T) {
	f := &fakeSearcher{
		pages: map[string]*engine.SearchPage{"t": page(item(idA), item(idB), item(idC))},
		views: map[string]int64{idA: 9, idB: 2, idC: 1},
	}
	s := NewScanner(f, engine.Config{MaxViews: 2}, WithRand(rand.New(rand.NewPCG(1, 1))))
	if g := ids(s.Scan(context.Background(), []string{"t"})); len(g) != 2 {
		t.Errorf("results = %v, want 2 items at or below threshold", g)
	}
}

func TestScanIsolatesFailures(t *testing.T) {
	f := &fakeSearcher{
		pages: map[string]*engine.SearchPage{
			"good":  page(item(idA)),
			"stats": page(item(idB), item(idC)),
		},
		views:    map[string]int64{},
		failTerm: map[string]bool{"broken": true},
		failStat: map[string]bool{idB: true},
	}
	before := engine.GetMetrics()["query_failures"]
	got := newTestScanner(f).Scan(context.Background(), []string{"broken", "stats", "none", "good"})
	if g := ids(got); len(g) != 1 || g[0] != idA {
		t.Errorf("results = %v, want [%s]", g, idA)
	}
	if after := engine.GetMetrics()["query_failures"]; after != before+2 {
		t.Errorf("query_failures = %d, want %d", after, before+2)
	}
}

func TestScanConcatenatesTerms(t *testing.T) {
	f := &fakeSearcher{
		pages: map[string]*engine.SearchPage{
			"one": page(item(idA), item(idB)),
			"two": page(item(idC)),
		},
		views: map[string]int64{},
	}
	got := newTestScanner(f).Scan(context.Background(), []string{"one", "two"})
	want := []string{idB, idA, idC}
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("results = %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Errorf("results[%d] = %s, want %s", i, g[i], want[i])
		}
	}
}

func TestScanWindows(t *testing.T) {
	f := &fakeSearcher{views: map[string]int64{}}
	newTestScanner(f).Scan(context.Background(), []string{"a", "b", "c"})
	if len(f.windows) != 3 {
		t.Fatalf("got %d searches, want 3", len(f.windows))
	}
	for _, w := range f.windows {
		b, err := time.Parse(time.RFC3339, w.Before)
		if err != nil {
			t.Fatalf("bad before %q", w.Before)
		}
		a, _ := time.Parse(time.RFC3339, w.After)
		if b.Sub(a) != 180*day {
			t.Errorf("window %+v is not 180 days", w)
		}
		if b.After(time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("before %s is less than a year old", w.Before)
		}
	}
}

func TestScanFixedBefore(t *testing.T) {
	f := &fakeSearcher{views: map[string]int64{}}
	before := time.Date(2015, 4, 16, 0, 0, 0, 0, time.UTC)
	newTestScanner(f, WithBefore(before)).Scan(context.Background(), []string{"a", "b"})
	for _, w := range f.windows {
		if w.Before != "2015-04-16T00:00:00Z" || w.After != "2014-10-18T00:00:00Z" {
			t.Errorf("window = %+v", w)
		}
	}
}

func TestScanCancelled(t *testing.T) {
	f := &fakeSearcher{views: map[string]int64{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := newTestScanner(f).Scan(ctx, []string{"a"}); len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
	if len(f.windows) != 0 {
		t.Errorf("cancelled scan should not search")
	}
}

func TestFilterPerChannel(t *testing.T) {
	mk := func(id, ch string) engine.VideoResult {
		return engine.VideoResult{URL: engine.WatchURL(id), Channel: ch}
	}
	in := []engine.VideoResult{
		mk(idA, "x"), mk(idB, "x"), mk(idC, "x"), mk(idD, "y"), mk("eeeeeeeeeee", ""), mk("fffffffffff", ""),
	}
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"cap two", 2, 5},
		{"cap one", 1, 4},
		{"disabled", 0, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterPerChannel(in, tt.limit)
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
	if got := FilterPerChannel(in, 1); got[0].VideoID() != idA || got[1].VideoID() != idD {
		t.Errorf("order not preserved: %v", ids(got))
	}
}
