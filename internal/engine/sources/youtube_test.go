package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/anatolykoptev/go_zeroview/internal/engine"
)

// fakePage is one canned search response keyed by the pageToken it answers.
type fakePage struct {
	ids  []string
	next string
}

type fakeYouTube struct {
	mu       sync.Mutex
	pages    map[string]fakePage // pageToken -> page
	views    map[string]*string  // videoId -> viewCount (nil = absent)
	forbid   map[string]bool     // keys answering 403
	queries  []map[string]string // search params seen
	keysSeen []string
}

func (f *fakeYouTube) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f.mu.Lock()
		f.keysSeen = append(f.keysSeen, q.Get("key"))
		f.mu.Unlock()
		if f.forbid[q.Get("key")] {
			http.Error(w, `{"error":{"errors":[{"reason":"quotaExceeded"}]}}`, http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/search":
			seen := map[string]string{}
			for k := range q {
				seen[k] = q.Get(k)
			}
			f.mu.Lock()
			f.queries = append(f.queries, seen)
			f.mu.Unlock()

			page := f.pages[q.Get("pageToken")]
			items := make([]map[string]any, 0, len(page.ids))
			for _, id := range page.ids {
				items = append(items, map[string]any{
					"id": map[string]string{"kind": "youtube#video", "videoId": id},
					"snippet": map[string]string{
						"title":                "title " + id,
						"channelTitle":         "chan",
						"publishedAt":          "2013-02-21T20:51:06.000Z",
						"liveBroadcastContent": "none",
					},
				})
			}
			resp := map[string]any{"items": items}
			if page.next != "" {
				resp["nextPageToken"] = page.next
			}
			json.NewEncoder(w).Encode(resp)
		case "/videos":
			id := q.Get("id")
			vc, ok := f.views[id]
			if !ok {
				json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
				return
			}
			stats := map[string]any{}
			if vc != nil {
				stats["viewCount"] = *vc
			}
			json.NewEncoder(w).Encode(map[string]any{"items": []any{map[string]any{
				"statistics": stats,
				"snippet":    map[string]string{"publishedAt": "2013-02-21T20:51:06.000Z"},
			}}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestYouTube(t *testing.T, f *fakeYouTube, mutate func(*engine.Config)) *YouTube {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	cfg := engine.Config{
		YouTubeAPIKey:  "k1",
		YouTubeAPIBase: srv.URL,
		HTTPClient:     srv.Client(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewYouTube(cfg)
}

func pageIDs(p *engine.SearchPage) []string {
	if p == nil {
		return nil
	}
	ids := make([]string, len(p.Items))
	for i, it := range p.Items {
		ids[i] = it.VideoID
	}
	return ids
}

func strp(s string) *string { return &s }

func TestSearchTerminalPage(t *testing.T) {
	tests := []struct {
		name  string
		pages map[string]fakePage
		want  []string
	}{
		{
			name: "empty page returns previous",
			pages: map[string]fakePage{
				"":   {ids: []string{"a1", "a2"}, next: "t1"},
				"t1": {ids: []string{"b1", "b2"}, next: "t2"},
				"t2": {},
			},
			want: []string{"b1", "b2"},
		},
		{
			name: "no token returns current",
			pages: map[string]fakePage{
				"":   {ids: []string{"a1"}, next: "t1"},
				"t1": {ids: []string{"b1", "b2", "b3"}},
			},
			want: []string{"b1", "b2", "b3"},
		},
		{
			name: "single page",
			pages: map[string]fakePage{
				"": {ids: []string{"a1", "a2"}},
			},
			want: []string{"a1", "a2"},
		},
		{
			name:  "first page empty",
			pages: map[string]fakePage{"": {next: "t1"}},
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yt := newTestYouTube(t, &fakeYouTube{pages: tt.pages}, nil)
			page, err := yt.Search(context.Background(), "peppery", "2015-04-16T00:00:00Z", "2014-10-18T00:00:00Z")
			if err != nil {
				t.Fatalf("Search error: %v", err)
			}
			got := pageIDs(page)
			if tt.want == nil {
				if page != nil {
					t.Fatalf("expected nil page, got %v", got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("page = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("page[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSearchQueryParams(t *testing.T) {
	f := &fakeYouTube{pages: map[string]fakePage{
		"":   {ids: []string{"a1"}, next: "t1"},
		"t1": {ids: []string{"b1"}},
	}}
	yt := newTestYouTube(t, f, nil)
	if _, err := yt.Search(context.Background(), "peppery", "2015-04-16T00:00:00Z", "2014-10-18T00:00:00Z"); err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(f.queries) != 2 {
		t.Fatalf("expected 2 page requests, got %d", len(f.queries))
	}
	first := f.queries[0]
	want := map[string]string{
		"q":                 "peppery",
		"order":             "viewCount",
		"type":              "video",
		"maxResults":        "50",
		"publishedBefore":   "2015-04-16T00:00:00Z",
		"publishedAfter":    "2014-10-18T00:00:00Z",
		"relevanceLanguage": "en",
		"key":               "k1",
	}
	for k, v := range want {
		if first[k] != v {
			t.Errorf("param %s = %q, want %q", k, first[k], v)
		}
	}
	if _, ok := first["pageToken"]; ok {
		t.Error("first request should not carry a pageToken")
	}
	if f.queries[1]["pageToken"] != "t1" {
		t.Errorf("second request pageToken = %q, want t1", f.queries[1]["pageToken"])
	}
}

func TestSearchPageLimit(t *testing.T) {
	f := &fakeYouTube{pages: map[string]fakePage{
		"":   {ids: []string{"a1"}, next: "t1"},
		"t1": {ids: []string{"b1"}, next: "t2"},
		"t2": {ids: []string{"c1"}, next: "t3"},
	}}
	yt := newTestYouTube(t, f, func(c *engine.Config) { c.MaxPages = 2 })
	page, err := yt.Search(context.Background(), "x", "b", "a")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if got := pageIDs(page); len(got) != 1 || got[0] != "b1" {
		t.Errorf("page = %v, want [b1]", got)
	}
	if len(f.queries) != 2 {
		t.Errorf("expected 2 requests, got %d", len(f.queries))
	}
}

func TestSearchQuotaFallback(t *testing.T) {
	f := &fakeYouTube{
		pages:  map[string]fakePage{"": {ids: []string{"a1"}}},
		forbid: map[string]bool{"k1": true},
	}
	yt := newTestYouTube(t, f, func(c *engine.Config) { c.YouTubeAPIKeyFallback = "k2" })
	page, err := yt.Search(context.Background(), "x", "b", "a")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if got := pageIDs(page); len(got) != 1 {
		t.Errorf("page = %v", got)
	}
	if len(f.keysSeen) != 2 || f.keysSeen[0] != "k1" || f.keysSeen[1] != "k2" {
		t.Errorf("keys seen = %v, want [k1 k2]", f.keysSeen)
	}
}

func TestSearchQuotaNoFallback(t *testing.T) {
	f := &fakeYouTube{forbid: map[string]bool{"k1": true}}
	yt := newTestYouTube(t, f, nil)
	if _, err := yt.Search(context.Background(), "x", "b", "a"); err == nil {
		t.Fatal("expected error on 403 without fallback key")
	}
}

func TestSearchNoKey(t *testing.T) {
	yt := newTestYouTube(t, &fakeYouTube{}, func(c *engine.Config) { c.YouTubeAPIKey = "" })
	if _, err := yt.Search(context.Background(), "x", "b", "a"); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestStats(t *testing.T) {
	f := &fakeYouTube{views: map[string]*string{
		"zero":    strp("0"),
		"some":    strp("42"),
		"hidden":  nil,
		"garbage": strp("lots"),
	}}
	yt := newTestYouTube(t, f, nil)
	ctx := context.Background()

	tests := []struct {
		id      string
		want    int64
		wantErr bool
	}{
		{"zero", 0, false},
		{"some", 42, false},
		{"hidden", 100, false},
		{"gone", 100, false},
		{"garbage", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			st, err := yt.Stats(ctx, tt.id)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Stats error: %v", err)
			}
			if st.Views != tt.want {
				t.Errorf("views = %d, want %d", st.Views, tt.want)
			}
		})
	}
}

func TestStatsCustomSentinel(t *testing.T) {
	f := &fakeYouTube{views: map[string]*string{"hidden": nil}}
	yt := newTestYouTube(t, f, func(c *engine.Config) { c.MissingViewsSentinel = 7 })
	st, err := yt.Stats(context.Background(), "hidden")
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if st.Views != 7 {
		t.Errorf("views = %d, want 7", st.Views)
	}
	if st.PublishedAt == "" {
		t.Error("publishedAt should be carried through")
	}
}

func TestSearchUnescapesTitles(t *testing.T) {
	f := &fakeYouTube{pages: map[string]fakePage{"": {ids: []string{"it&#39;s &amp; more"}}}}
	yt := newTestYouTube(t, f, nil)
	page, err := yt.Search(context.Background(), "x", "b", "a")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if got := page.Items[0].Title; got != "title it's & more" {
		t.Errorf("title = %q", got)
	}
}
