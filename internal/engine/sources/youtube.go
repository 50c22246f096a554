package sources

// YouTube implementation is split across two files by responsibility:
//   youtube.go        : client construction, key fallback, rate limiting, HTTP primitives
//   youtube_search.go : viewCount-ordered search walked to its terminal page, and
//                       single-video statistics lookups

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/anatolykoptev/go_zeroview/internal/engine"
	"golang.org/x/time/rate"
)

const (
	ytMaxResults = 50 // API maximum per page
	ytOrder      = "viewCount"
)

// errQuota marks a 403 from the Data API: daily quota spent or key disabled.
var errQuota = errors.New("youtube quota exceeded")

// YouTube is a YouTube Data API v3 client for viewCount-ordered searches
// and statistics lookups.
type YouTube struct {
	keys     []string
	base     string
	language string
	maxPages int
	sentinel int64
	http     *http.Client
	limiter  *rate.Limiter
	retry    engine.RetryConfig
}

// NewYouTube builds a client from cfg. The fallback key, if set, is tried
// when the primary key hits its quota.
func NewYouTube(cfg engine.Config) *YouTube {
	cfg = cfg.WithDefaults()
	var keys []string
	for _, k := range []string{cfg.YouTubeAPIKey, cfg.YouTubeAPIKeyFallback} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.YouTubeQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.YouTubeQPS), 1)
	}
	return &YouTube{
		keys:     keys,
		base:     strings.TrimRight(cfg.YouTubeAPIBase, "/"),
		language: cfg.YouTubeLanguage,
		maxPages: cfg.MaxPages,
		sentinel: cfg.MissingViewsSentinel,
		http:     cfg.HTTPClient,
		limiter:  limiter,
		retry:    engine.DefaultRetryConfig,
	}
}

// get calls endpoint with params, decoding the JSON body into out.
// On a quota error the next configured key is tried.
func (y *YouTube) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if len(y.keys) == 0 {
		return errors.New("youtube: no API key configured")
	}
	var lastErr error
	for i, key := range y.keys {
		err := y.getWithKey(ctx, endpoint, params, key, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, errQuota) || i == len(y.keys)-1 {
			break
		}
		engine.IncrQuotaFallbacks()
		slog.Debug("youtube: key quota exhausted, trying fallback", slog.Any("err", err))
	}
	return lastErr
}

func (y *YouTube) getWithKey(ctx context.Context, endpoint string, params url.Values, key string, out any) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("key", key)
	apiURL := y.base + "/" + endpoint + "?" + q.Encode()

	resp, err := engine.RetryHTTP(ctx, y.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		req.Header.Set("Accept", "application/json")
		return y.http.Do(req)
	})
	if err != nil {
		return fmt.Errorf("youtube %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("youtube %s 403: %s: %w", endpoint, strings.TrimSpace(string(body)), errQuota)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("youtube %s %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode youtube %s: %w", endpoint, err)
	}
	return nil
}
