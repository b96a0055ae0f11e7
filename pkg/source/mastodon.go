package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Mastodon servers cap timeline pages at 40 statuses.
const mastodonPageSize = 40

// MastodonOptions configures the Mastodon source.
type MastodonOptions struct {
	BaseURL     string
	AccessToken string
	Limit       int           // statuses per search term (default 50)
	MaxAge      time.Duration // discard older statuses (default 24h)
	Timeout     time.Duration // fetch budget (default 30s)
}

// Mastodon reads hashtag timelines from a Mastodon instance.
type Mastodon struct {
	client *http.Client
	opts   MastodonOptions
	now    func() time.Time
}

// NewMastodon creates a new Mastodon source.
func NewMastodon(opts MastodonOptions) *Mastodon {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://mastodon.social"
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 24 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Mastodon{
		client: &http.Client{Timeout: 30 * time.Second},
		opts:   opts,
		now:    time.Now,
	}
}

func (m *Mastodon) Name() SourceType { return SourceMastodon }

func (m *Mastodon) Timeout() time.Duration { return m.opts.Timeout }

// Fetch reads up to limit statuses tagged with term and keeps those inside the age window.
func (m *Mastodon) Fetch(ctx context.Context, term string, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = m.opts.Limit
	}

	tag := Hashtag(term)
	if tag == "" {
		return nil, nil
	}

	cutoff := m.now().UTC().Add(-m.opts.MaxAge)
	var (
		posts []Post
		seen  int
		maxID string
	)

	for seen < limit {
		page := min(limit-seen, mastodonPageSize)
		statuses, err := m.timeline(ctx, tag, page, maxID)
		if err != nil {
			return nil, fmt.Errorf("mastodon #%s: %w", tag, err)
		}
		if len(statuses) == 0 {
			break
		}

		for _, st := range statuses {
			if st.CreatedAt.UTC().Before(cutoff) {
				continue
			}
			text := StripHTML(st.Content)
			if text == "" {
				continue
			}
			posts = append(posts, Post{
				Text:   text,
				Likes:  nonNegative(st.FavouritesCount),
				Source: SourceMastodon,
				URL:    st.URL,
			})
		}

		seen += len(statuses)
		maxID = statuses[len(statuses)-1].ID
		if len(statuses) < page {
			break
		}
	}

	return posts, nil
}

func (m *Mastodon) timeline(ctx context.Context, tag string, limit int, maxID string) ([]mastodonStatus, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if maxID != "" {
		params.Set("max_id", maxID)
	}

	reqURL := fmt.Sprintf("%s/api/v1/timelines/tag/%s?%s", m.opts.BaseURL, url.PathEscape(tag), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "moodradar/1.0")
	if m.opts.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+m.opts.AccessToken)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch timeline: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timeline status %d", resp.StatusCode)
	}

	var statuses []mastodonStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	return statuses, nil
}

// Hashtag turns a search term into a Mastodon hashtag: no leading '#', no whitespace.
func Hashtag(term string) string {
	term = strings.TrimLeft(strings.TrimSpace(term), "#")
	return strings.Join(strings.Fields(term), "")
}

type mastodonStatus struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	Content         string    `json:"content"`
	URL             string    `json:"url"`
	FavouritesCount int       `json:"favourites_count"`
}
