package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	DatabasePath string // SQLite file, used when DatabaseURL is empty
	DatabaseURL  string // Postgres DSN; selects the pgx backend
	WordListPath string

	YouTubeAPIKey         string
	YouTubeAPIKeyFallback string
	YouTubeAPIBase        string
	YouTubeLanguage       string
	YouTubeQPS            float64 // 0 = unlimited
	MaxPages              int     // hard stop for one term's pagination walk

	MaxViews             int64 // items with views <= MaxViews count as zero-view
	MissingViewsSentinel int64 // reported when the API omits viewCount
	WindowDays           int
	MaxPerChannel        int // 0 = no per-channel cap

	TwitterAPIKey      string
	TwitterAPISecret   string
	TwitterOAuthToken  string
	TwitterOAuthSecret string
	TwitterAPIBase     string
	TwitterAccounts    string // go-twitter account list for the duplicate guard

	FetchTimeout time.Duration
	HTTPClient   *http.Client
}

// Defaults used when a field is left at its zero value.
const (
	DefaultYouTubeAPIBase       = "https://www.googleapis.com/youtube/v3"
	DefaultTwitterAPIBase       = "https://api.twitter.com/2"
	DefaultLanguage             = "en"
	DefaultMaxPages             = 20
	DefaultMissingViewsSentinel = 100
	DefaultWindowDays           = 180
)

// WithDefaults returns a copy of c with zero fields filled in.
func (c Config) WithDefaults() Config {
	if c.YouTubeAPIBase == "" {
		c.YouTubeAPIBase = DefaultYouTubeAPIBase
	}
	if c.TwitterAPIBase == "" {
		c.TwitterAPIBase = DefaultTwitterAPIBase
	}
	if c.YouTubeLanguage == "" {
		c.YouTubeLanguage = DefaultLanguage
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.MissingViewsSentinel <= 0 {
		c.MissingViewsSentinel = DefaultMissingViewsSentinel
	}
	if c.WindowDays <= 0 {
		c.WindowDays = DefaultWindowDays
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout: c.FetchTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		}
	}
	return c
}

// Need selects which credential groups a command requires.
type Need int

const (
	NeedYouTube Need = 1 << iota
	NeedTwitter
)

// Validate reports every missing credential required by needs.
func (c Config) Validate(needs Need) error {
	var missing []string
	if needs&NeedYouTube != 0 && c.YouTubeAPIKey == "" {
		missing = append(missing, "GOOGLE_API_KEY")
	}
	if needs&NeedTwitter != 0 {
		for _, f := range []struct{ name, val string }{
			{"TWITTER_API_KEY", c.TwitterAPIKey},
			{"TWITTER_API_SECRET", c.TwitterAPISecret},
			{"TWITTER_OAUTH_TOKEN", c.TwitterOAuthToken},
			{"TWITTER_OAUTH_SECRET", c.TwitterOAuthSecret},
		} {
			if f.val == "" {
				missing = append(missing, f.name)
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}
