package engine

import "regexp"

// --- Core video types ---

// VideoResult is a discovered zero-view candidate.
type VideoResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Views       int64  `json:"views"`
	PublishDate string `json:"publish_date"` // ISO 8601 as returned by the API
	Channel     string `json:"channel,omitempty"`
}

// VideoID returns the id embedded in the watch URL, or "" if none.
func (v VideoResult) VideoID() string {
	return ExtractVideoID(v.URL)
}

// SearchItem is one entry of a search result page.
type SearchItem struct {
	VideoID              string
	Title                string
	ChannelTitle         string
	PublishedAt          string
	LiveBroadcastContent string // "none", "live" or "upcoming"
}

// IsLive reports whether the item is a live or upcoming broadcast.
// An absent status is treated as "none".
func (it SearchItem) IsLive() bool {
	return it.LiveBroadcastContent != "" && it.LiveBroadcastContent != "none"
}

// SearchPage is one page of a viewCount-ordered search.
type SearchPage struct {
	Items         []SearchItem
	NextPageToken string
}

// VideoStats is the result of a single-video statistics lookup.
type VideoStats struct {
	Views       int64
	PublishedAt string
}

// WatchURL builds the canonical watch URL for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

var videoIDRE = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// ExtractVideoID pulls the 11-char video ID from any YouTube URL format.
func ExtractVideoID(rawURL string) string {
	m := videoIDRE.FindStringSubmatch(rawURL)
	if len(m) >= 2 {
		return m[1]
	}
	return ""
}

// --- Outcome types (CLI + MCP responses) ---

type StatusOutput struct {
	Links     int `json:"links"`
	IndexSize int `json:"index_size"`
}

type RefillOutput struct {
	Refreshed bool   `json:"refreshed"`         // index was empty and got refilled; no scan ran
	Skipped   bool   `json:"skipped,omitempty"` // enough links already stored
	Terms     int    `json:"terms"`             // search terms scanned
	Found     int    `json:"found"`             // zero-view results before channel cap
	Added     int    `json:"added"`             // rows inserted
	Links     int    `json:"links"`             // link count after the call
	Message   string `json:"message"`
}

type PublishOutput struct {
	Published bool        `json:"published"`
	Discarded int         `json:"discarded"` // popped items dropped on recheck
	Text      string      `json:"text,omitempty"`
	Video     VideoResult `json:"video,omitempty"`
	Message   string      `json:"message"`
}

type SearchOutput struct {
	Terms   []string      `json:"terms"`
	Results []VideoResult `json:"results"`
}

// --- MCP inputs ---

type StatusInput struct{}

type RefillInput struct {
	N       int `json:"n" jsonschema:"Number of search terms to scan (half from the index, half random two-word terms)"`
	IfBelow int `json:"if_below,omitempty" jsonschema:"Only refill when fewer than this many links are stored (0 = always)"`
}

type PublishInput struct {
	DryRun bool `json:"dry_run,omitempty" jsonschema:"Recheck and format the next link but do not post it"`
}

type SearchInput struct {
	N int `json:"n" jsonschema:"Number of random words to scan; nothing is stored"`
}
