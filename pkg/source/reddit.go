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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	redditTokenURL = "https://www.reddit.com/api/v1/access_token"
	redditAPIURL   = "https://oauth.reddit.com"
	redditSiteURL  = "https://reddit.com"
)

// RedditOptions configures the Reddit source.
type RedditOptions struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	SearchLimit  int           // posts per search term (default 100)
	TimeFilter   string        // reddit "t" parameter (default "day")
	Timeout      time.Duration // fetch budget (default 30s)
	RateLimit    float64       // requests per second (default 1)

	// APIURL and TokenURL override the Reddit endpoints.
	APIURL   string
	TokenURL string
}

// Reddit searches r/all with an app-only OAuth token.
type Reddit struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    RedditOptions
}

// NewReddit creates a new Reddit source.
func NewReddit(opts RedditOptions) *Reddit {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 100
	}
	if opts.TimeFilter == "" {
		opts.TimeFilter = "day"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "moodradar/1.0"
	}
	if opts.APIURL == "" {
		opts.APIURL = redditAPIURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = redditTokenURL
	}
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")

	oauthConf := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// The token endpoint also rejects requests without a descriptive User-Agent.
	base := &http.Client{
		Timeout:   30 * time.Second,
		Transport: userAgentTransport{agent: opts.UserAgent, next: http.DefaultTransport},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	return &Reddit{
		client:  oauthConf.Client(ctx),
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 5),
		opts:    opts,
	}
}

func (r *Reddit) Name() SourceType { return SourceReddit }

func (r *Reddit) Timeout() time.Duration { return r.opts.Timeout }

// Fetch searches r/all for term within the configured time window, sorted by relevance.
func (r *Reddit) Fetch(ctx context.Context, term string, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = r.opts.SearchLimit
	}

	params := url.Values{}
	params.Set("q", term)
	params.Set("sort", "relevance")
	params.Set("t", r.opts.TimeFilter)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("raw_json", "1")

	listing, err := r.listing(ctx, "/r/all/search", params)
	if err != nil {
		return nil, fmt.Errorf("reddit search %q: %w", term, err)
	}

	var posts []Post
	for _, child := range listing.Data.Children {
		p := child.Data
		text := strings.TrimSpace(p.Title + " " + MarkdownToText(p.Selftext))
		if text == "" {
			continue
		}
		posts = append(posts, Post{
			Text:   text,
			Likes:  nonNegative(p.Score),
			Source: SourceReddit,
			URL:    redditSiteURL + p.Permalink,
		})
		if len(posts) >= limit {
			break
		}
	}
	return posts, nil
}

// Trending returns short titles (six words or fewer) from r/all hot posts.
func (r *Reddit) Trending(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit*3))
	params.Set("raw_json", "1")

	listing, err := r.listing(ctx, "/r/all/hot", params)
	if err != nil {
		return nil, fmt.Errorf("reddit hot: %w", err)
	}

	var titles []string
	for _, child := range listing.Data.Children {
		title := strings.TrimSpace(child.Data.Title)
		if title == "" || len(strings.Fields(title)) > 6 {
			continue
		}
		titles = append(titles, title)
	}
	return titles, nil
}

func (r *Reddit) listing(ctx context.Context, path string, params url.Values) (*redditListing, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := r.opts.APIURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s status %d", path, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &listing, nil
}

type userAgentTransport struct {
	agent string
	next  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}
	return t.next.RoundTrip(req)
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Selftext  string `json:"selftext"`
	Permalink string `json:"permalink"`
	Score     int    `json:"score"`
}
