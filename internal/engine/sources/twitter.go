package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	twitter "github.com/anatolykoptev/go-twitter"
	"github.com/anatolykoptev/go_zeroview/internal/engine"
	"github.com/dghubble/oauth1"
)

// TwitterPoster publishes status updates through the v2 API with
// OAuth 1.0a user-context credentials.
type TwitterPoster struct {
	base string
	http *http.Client
}

// NewTwitterPoster signs requests with the four credentials from cfg.
// cfg.HTTPClient is used as the underlying transport.
func NewTwitterPoster(ctx context.Context, cfg engine.Config) *TwitterPoster {
	cfg = cfg.WithDefaults()
	ctx = context.WithValue(ctx, oauth1.HTTPClient, cfg.HTTPClient)
	oc := oauth1.NewConfig(cfg.TwitterAPIKey, cfg.TwitterAPISecret)
	token := oauth1.NewToken(cfg.TwitterOAuthToken, cfg.TwitterOAuthSecret)
	return &TwitterPoster{
		base: strings.TrimRight(cfg.TwitterAPIBase, "/"),
		http: oc.Client(ctx, token),
	}
}

type tweetReq struct {
	Text string `json:"text"`
}

type tweetErrResp struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Publish posts text once. Posting is not idempotent, so nothing is retried:
// 429 maps to engine.ErrRateLimited, other failures to *engine.PublishRejectedError.
func (p *TwitterPoster) Publish(ctx context.Context, text string) error {
	body, err := json.Marshal(tweetReq{Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/tweets", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", engine.UserAgentBot)

	resp, err := p.http.Do(req)
	if err != nil {
		engine.IncrPostFailures()
		return fmt.Errorf("twitter post: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		engine.IncrPosts()
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		engine.IncrPostFailures()
		return engine.ErrRateLimited
	}

	engine.IncrPostFailures()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	reason := strings.TrimSpace(string(raw))
	var er tweetErrResp
	if json.Unmarshal(raw, &er) == nil && (er.Detail != "" || er.Title != "") {
		reason = er.Detail
		if reason == "" {
			reason = er.Title
		}
	}
	return &engine.PublishRejectedError{StatusCode: resp.StatusCode, Reason: reason}
}

// TwitterGuard checks recent posts for a video before it is published again.
type TwitterGuard struct {
	client *twitter.Client
	limit  int
}

// NewTwitterGuard builds a search client from a go-twitter account list.
func NewTwitterGuard(accounts string) (*TwitterGuard, error) {
	tw, err := twitter.NewClient(twitter.ClientConfig{
		Accounts:         twitter.ParseAccounts(accounts),
		OpenAccountCount: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("twitter guard: %w", err)
	}
	slog.Info("twitter guard ready", slog.Int("pool_size", tw.Pool().Size()))
	return &TwitterGuard{client: tw, limit: 5}, nil
}

// AlreadyPosted reports whether any recent post links to the video.
func (g *TwitterGuard) AlreadyPosted(ctx context.Context, videoURL string) (bool, error) {
	id := engine.ExtractVideoID(videoURL)
	if id == "" {
		return false, nil
	}
	tweets, err := g.client.SearchTimeline(ctx, "url:"+id, g.limit)
	if err != nil {
		return false, fmt.Errorf("twitter search: %w", err)
	}
	return len(tweets) > 0, nil
}
