package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	SearchRequests atomic.Int64
	SearchPages    atomic.Int64
	StatsRequests  atomic.Int64
	QueryFailures  atomic.Int64
	QuotaFallbacks atomic.Int64
	IndexRefreshes atomic.Int64
	LinksAdded     atomic.Int64
	LinksDiscarded atomic.Int64
	Posts          atomic.Int64
	PostFailures   atomic.Int64
}

// metricKeys fixes the exposition order.
var metricKeys = []string{
	"search_requests", "search_pages", "stats_requests",
	"query_failures", "quota_fallbacks",
	"index_refreshes", "links_added", "links_discarded",
	"posts", "post_failures",
}

// GetMetrics returns a snapshot of all metrics.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"search_requests": metrics.SearchRequests.Load(),
		"search_pages":    metrics.SearchPages.Load(),
		"stats_requests":  metrics.StatsRequests.Load(),
		"query_failures":  metrics.QueryFailures.Load(),
		"quota_fallbacks": metrics.QuotaFallbacks.Load(),
		"index_refreshes": metrics.IndexRefreshes.Load(),
		"links_added":     metrics.LinksAdded.Load(),
		"links_discarded": metrics.LinksDiscarded.Load(),
		"posts":           metrics.Posts.Load(),
		"post_failures":   metrics.PostFailures.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "zeroview_%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sources/ sub-package.
func IncrSearchRequests() { metrics.SearchRequests.Add(1) }
func IncrSearchPages()    { metrics.SearchPages.Add(1) }
func IncrStatsRequests()  { metrics.StatsRequests.Add(1) }
func IncrQuotaFallbacks() { metrics.QuotaFallbacks.Add(1) }
func IncrPosts()          { metrics.Posts.Add(1) }
func IncrPostFailures()   { metrics.PostFailures.Add(1) }

// Incrementors for zeroview/ and bot/.
func IncrQueryFailures()  { metrics.QueryFailures.Add(1) }
func IncrIndexRefreshes() { metrics.IndexRefreshes.Add(1) }
func AddLinksAdded(n int) { metrics.LinksAdded.Add(int64(n)) }
func IncrLinksDiscarded() { metrics.LinksDiscarded.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
