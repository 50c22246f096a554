package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/anatolykoptev/go_zeroview/internal/engine"
	"golang.org/x/net/html"
)

// --- YouTube Data API v3 types ---

type ytSearchResp struct {
	NextPageToken string         `json:"nextPageToken"`
	Items         []ytSearchItem `json:"items"`
}

type ytSearchItem struct {
	ID      ytSearchItemID      `json:"id"`
	Snippet ytSearchItemSnippet `json:"snippet"`
}

type ytSearchItemID struct {
	VideoID string `json:"videoId"`
}

type ytSearchItemSnippet struct {
	Title                string `json:"title"`
	ChannelTitle         string `json:"channelTitle"`
	PublishedAt          string `json:"publishedAt"`
	LiveBroadcastContent string `json:"liveBroadcastContent"`
}

type ytVideosResp struct {
	Items []ytVideo `json:"items"`
}

type ytVideo struct {
	Statistics struct {
		ViewCount *string `json:"viewCount"` // decimal string; absent for some videos
	} `json:"statistics"`
	Snippet struct {
		PublishedAt string `json:"publishedAt"`
	} `json:"snippet"`
}

// Search runs a viewCount-ordered query for term restricted to the
// [after, before] publish window and walks its pages to the edge of the
// result window. It returns the last non-empty page: when a page comes back
// empty the previous page is returned, and when no next-page token is
// offered the current page is returned. A nil page means the very first
// page was empty.
func (y *YouTube) Search(ctx context.Context, term, before, after string) (*engine.SearchPage, error) {
	engine.IncrSearchRequests()

	params := url.Values{}
	params.Set("part", "id,snippet")
	params.Set("q", term)
	params.Set("type", "video")
	params.Set("order", ytOrder)
	params.Set("maxResults", strconv.Itoa(ytMaxResults))
	params.Set("publishedBefore", before)
	params.Set("publishedAfter", after)
	if y.language != "" && y.language != "all" {
		params.Set("relevanceLanguage", y.language)
	}

	var prev *engine.SearchPage
	for pages := 1; ; pages++ {
		page, err := y.searchPage(ctx, params)
		if err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			return prev, nil
		}
		if page.NextPageToken == "" {
			return page, nil
		}
		if pages >= y.maxPages {
			slog.Warn("youtube: page limit reached, using current page",
				slog.String("term", term), slog.Int("pages", pages))
			return page, nil
		}
		prev = page
		params.Set("pageToken", page.NextPageToken)
	}
}

func (y *YouTube) searchPage(ctx context.Context, params url.Values) (*engine.SearchPage, error) {
	engine.IncrSearchPages()
	var resp ytSearchResp
	if err := y.get(ctx, "search", params, &resp); err != nil {
		return nil, err
	}
	page := &engine.SearchPage{
		NextPageToken: resp.NextPageToken,
		Items:         make([]engine.SearchItem, 0, len(resp.Items)),
	}
	for _, it := range resp.Items {
		if it.ID.VideoID == "" {
			continue
		}
		// Snippet text arrives HTML-escaped ("&#39;", "&amp;").
		page.Items = append(page.Items, engine.SearchItem{
			VideoID:              it.ID.VideoID,
			Title:                html.UnescapeString(it.Snippet.Title),
			ChannelTitle:         html.UnescapeString(it.Snippet.ChannelTitle),
			PublishedAt:          it.Snippet.PublishedAt,
			LiveBroadcastContent: it.Snippet.LiveBroadcastContent,
		})
	}
	return page, nil
}

// Stats looks up the current view count of one video. A missing viewCount
// (or a video the API no longer returns) is reported as the configured
// sentinel so the video never qualifies as zero-view.
func (y *YouTube) Stats(ctx context.Context, videoID string) (engine.VideoStats, error) {
	engine.IncrStatsRequests()

	params := url.Values{}
	params.Set("part", "statistics,snippet")
	params.Set("id", videoID)

	var resp ytVideosResp
	if err := y.get(ctx, "videos", params, &resp); err != nil {
		return engine.VideoStats{}, err
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics.ViewCount == nil {
		var published string
		if len(resp.Items) > 0 {
			published = resp.Items[0].Snippet.PublishedAt
		}
		return engine.VideoStats{Views: y.sentinel, PublishedAt: published}, nil
	}

	item := resp.Items[0]
	views, err := strconv.ParseUint(*item.Statistics.ViewCount, 10, 63)
	if err != nil {
		return engine.VideoStats{}, fmt.Errorf("youtube videos %s: bad viewCount %q: %w", videoID, *item.Statistics.ViewCount, err)
	}
	return engine.VideoStats{Views: int64(views), PublishedAt: item.Snippet.PublishedAt}, nil
}
