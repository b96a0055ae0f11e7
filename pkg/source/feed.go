package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Feed is a named RSS/Atom feed URL.
type Feed struct {
	Name string
	URL  string
}

// Feeds surfaces short headlines from RSS/Atom feeds as trending candidates.
type Feeds struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []Feed
}

// NewFeeds creates a new feed trending source.
func NewFeeds(feeds []Feed) *Feeds {
	return &Feeds{
		client: &http.Client{Timeout: 15 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
	}
}

func (f *Feeds) Name() SourceType { return SourceFeed }

// Trending returns entry titles of six words or fewer, in feed order.
func (f *Feeds) Trending(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}

	var titles []string
	for _, feed := range f.feeds {
		entries, err := f.collectFeed(ctx, feed, limit*3)
		if err != nil {
			slog.Warn("feed skipped", "feed", feed.Name, "error", err)
			continue
		}
		titles = append(titles, entries...)
	}
	return titles, nil
}

func (f *Feeds) collectFeed(ctx context.Context, feed Feed, max int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "moodradar/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.Name, err)
	}

	var titles []string
	for i, entry := range parsed.Items {
		if i >= max {
			break
		}
		title := StripHTML(entry.Title)
		if title == "" || len(strings.Fields(title)) > 6 {
			continue
		}
		titles = append(titles, title)
	}
	return titles, nil
}
