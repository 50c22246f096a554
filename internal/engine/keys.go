package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Keys mirrors the credentials file. The file may be YAML or the legacy
// keys.json layout, which yaml.v3 parses as well.
type Keys struct {
	GoogleAPIKey         string `yaml:"GOOGLE_API_KEY"`
	GoogleAPIKeyFallback string `yaml:"GOOGLE_API_KEY_FALLBACK"`
	TwitterAPIKey        string `yaml:"TWITTER_API_KEY"`
	TwitterAPISecret     string `yaml:"TWITTER_API_SECRET"`
	TwitterOAuthToken    string `yaml:"TWITTER_OAUTH_TOKEN"`
	TwitterOAuthSecret   string `yaml:"TWITTER_OAUTH_SECRET"`
}

// LoadKeys reads a credentials file. A missing file yields empty Keys so
// that environment-only deployments work.
func LoadKeys(path string) (Keys, error) {
	var k Keys
	if path == "" {
		return k, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return k, nil
	}
	if err != nil {
		return k, fmt.Errorf("read keys file: %w", err)
	}
	if err := yaml.Unmarshal(data, &k); err != nil {
		return k, fmt.Errorf("parse keys file %s: %w", path, err)
	}
	return k, nil
}

// Apply copies non-empty keys into c without overriding values already set
// (environment wins over the file).
func (k Keys) Apply(c *Config) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&c.YouTubeAPIKey, k.GoogleAPIKey)
	fill(&c.YouTubeAPIKeyFallback, k.GoogleAPIKeyFallback)
	fill(&c.TwitterAPIKey, k.TwitterAPIKey)
	fill(&c.TwitterAPISecret, k.TwitterAPISecret)
	fill(&c.TwitterOAuthToken, k.TwitterOAuthToken)
	fill(&c.TwitterOAuthSecret, k.TwitterOAuthSecret)
}
