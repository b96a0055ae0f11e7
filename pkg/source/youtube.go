package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elonfeng/moodradar/pkg/ml"
)

const (
	youtubeAPIURL = "https://www.googleapis.com/youtube/v3"

	// commentThreads accepts at most 100 results per page.
	youtubeMaxComments = 100
)

// YouTubeOptions configures the video source.
type YouTubeOptions struct {
	APIKey        string
	MaxVideos     int           // videos searched per term (default 3)
	MaxComments   int           // comments per video (default 50, capped at 100)
	MinSimilarity float64       // keep comments at least this similar to the term (default 0.3)
	Region        string        // trending chart region (default "US")
	Timeout       time.Duration // fetch budget (default 60s)

	// APIURL overrides the YouTube Data API base URL.
	APIURL string
}

// YouTube collects comments on recent videos and trending video titles.
type YouTube struct {
	client *http.Client
	scorer ml.SimilarityScorer
	opts   YouTubeOptions
	now    func() time.Time
}

// NewYouTube creates a new YouTube source. The scorer filters comments by
// relevance to the search term.
func NewYouTube(opts YouTubeOptions, scorer ml.SimilarityScorer) *YouTube {
	if opts.MaxVideos <= 0 {
		opts.MaxVideos = 3
	}
	if opts.MaxComments <= 0 {
		opts.MaxComments = 50
	}
	if opts.MaxComments > youtubeMaxComments {
		opts.MaxComments = youtubeMaxComments
	}
	if opts.MinSimilarity == 0 {
		opts.MinSimilarity = 0.3
	}
	if opts.Region == "" {
		opts.Region = "US"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.APIURL == "" {
		opts.APIURL = youtubeAPIURL
	}
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")

	return &YouTube{
		client: &http.Client{Timeout: 30 * time.Second},
		scorer: scorer,
		opts:   opts,
		now:    time.Now,
	}
}

func (y *YouTube) Name() SourceType { return SourceVideo }

func (y *YouTube) Timeout() time.Duration { return y.opts.Timeout }

// Fetch finds videos published in the last 24h for term and returns their
// top-level comments that are semantically close to term.
// limit caps the number of videos searched.
func (y *YouTube) Fetch(ctx context.Context, term string, limit int) ([]Post, error) {
	if y.opts.APIKey == "" {
		return nil, fmt.Errorf("youtube: API key required (set YOUTUBE_API_KEY)")
	}
	if y.scorer == nil {
		return nil, fmt.Errorf("youtube: similarity scorer required")
	}
	if limit <= 0 {
		limit = y.opts.MaxVideos
	}

	videoIDs, err := y.search(ctx, term, limit)
	if err != nil {
		return nil, err
	}

	var posts []Post
	for _, vid := range videoIDs {
		comments, err := y.comments(ctx, vid)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("youtube comments skipped", "video", vid, "error", err)
			continue
		}
		if len(comments) == 0 {
			continue
		}

		texts := make([]string, len(comments))
		for i, c := range comments {
			texts[i] = c.text
		}
		sims, err := y.scorer.Similarity(ctx, term, texts)
		if err == nil && len(sims) != len(comments) {
			err = fmt.Errorf("got %d scores for %d comments", len(sims), len(comments))
		}
		if err != nil {
			return nil, fmt.Errorf("youtube comment similarity %s: %w", vid, err)
		}

		kept := 0
		for i, c := range comments {
			if sims[i] < y.opts.MinSimilarity {
				continue
			}
			sim := math.Round(sims[i]*1000) / 1000
			posts = append(posts, Post{
				Text:       c.text,
				Likes:      nonNegative(c.likes),
				Source:     SourceVideo,
				URL:        fmt.Sprintf("https://www.youtube.com/watch?v=%s&lc=%s", vid, c.id),
				Similarity: &sim,
			})
			kept++
		}
		slog.Debug("youtube comments scored", "video", vid, "comments", len(comments), "kept", kept)
	}

	return posts, nil
}

// Trending returns the titles of the most popular videos in the configured region.
func (y *YouTube) Trending(ctx context.Context, limit int) ([]string, error) {
	if y.opts.APIKey == "" {
		return nil, fmt.Errorf("youtube: API key required (set YOUTUBE_API_KEY)")
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("chart", "mostPopular")
	params.Set("regionCode", y.opts.Region)
	params.Set("maxResults", strconv.Itoa(min(limit, 50)))

	var result ytVideoList
	if err := y.get(ctx, "/videos", params, &result); err != nil {
		return nil, fmt.Errorf("youtube trending: %w", err)
	}

	var titles []string
	for _, item := range result.Items {
		if t := strings.TrimSpace(item.Snippet.Title); t != "" {
			titles = append(titles, t)
		}
	}
	return titles, nil
}

func (y *YouTube) search(ctx context.Context, term string, maxVideos int) ([]string, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", term)
	params.Set("type", "video")
	params.Set("order", "relevance")
	params.Set("publishedAfter", y.now().UTC().Add(-24*time.Hour).Format(time.RFC3339))
	params.Set("maxResults", strconv.Itoa(maxVideos))

	var result ytSearchResult
	if err := y.get(ctx, "/search", params, &result); err != nil {
		return nil, fmt.Errorf("youtube search %q: %w", term, err)
	}

	var ids []string
	for _, item := range result.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	return ids, nil
}

type ytComment struct {
	id    string
	text  string
	likes int
}

func (y *YouTube) comments(ctx context.Context, videoID string) ([]ytComment, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", videoID)
	params.Set("maxResults", strconv.Itoa(y.opts.MaxComments))
	params.Set("textFormat", "plainText")

	var result ytCommentThreads
	if err := y.get(ctx, "/commentThreads", params, &result); err != nil {
		return nil, fmt.Errorf("youtube comments %s: %w", videoID, err)
	}

	var comments []ytComment
	for _, item := range result.Items {
		snippet := item.Snippet.TopLevelComment.Snippet
		text := strings.TrimSpace(snippet.TextDisplay)
		if text == "" {
			continue
		}
		comments = append(comments, ytComment{id: item.ID, text: text, likes: snippet.LikeCount})
	}
	return comments, nil
}

func (y *YouTube) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("key", y.opts.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.opts.APIURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type ytSearchResult struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type ytCommentThreads struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					TextDisplay string `json:"textDisplay"`
					LikeCount   int    `json:"likeCount"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

type ytVideoList struct {
	Items []struct {
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}
