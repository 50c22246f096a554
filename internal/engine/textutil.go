package engine

import (
	"fmt"

	"github.com/anatolykoptev/go-kit/strutil"
)

// User-Agent sent with API requests.
const UserAgentBot = "go_zeroview/1.0"

// Title budget for a post: url, date and line breaks take the rest.
const (
	maxTitleRunes = 75
	cutTitleRunes = 72
	ellipsis      = "..."
)

// TruncateTitle keeps titles of up to 75 runes and cuts longer ones to
// 72 runes followed by "...".
func TruncateTitle(title string) string {
	r := []rune(title)
	if len(r) <= maxTitleRunes {
		return title
	}
	return string(r[:cutTitleRunes]) + ellipsis
}

// DateOnly strips an ISO 8601 timestamp to its YYYY-MM-DD part.
func DateOnly(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}

// FormatPost renders the text published for one video.
func FormatPost(v VideoResult) string {
	return fmt.Sprintf("%s\n%s\nuploaded: %s", TruncateTitle(v.Title), v.URL, DateOnly(v.PublishDate))
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}
