package mood

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elonfeng/moodradar/internal/metrics"
	"github.com/elonfeng/moodradar/pkg/ml"
	"github.com/elonfeng/moodradar/pkg/source"
)

// DefaultLimit is the result limit used when a caller passes none.
const DefaultLimit = 20

var (
	// ErrNoPosts means no source produced a usable post for the topic.
	ErrNoPosts = errors.New("no posts found for topic")

	// ErrEmptyTopic is returned for a blank topic.
	ErrEmptyTopic = errors.New("topic is required")
)

// Options tunes the analysis pipeline. Zero values select defaults.
type Options struct {
	MaxTerms  int
	MaxPosts  int
	BatchSize int
}

// Results holds the per-source top lists and every analyzed post in rank order.
type Results struct {
	Reddit   []source.Post `json:"reddit"`
	Mastodon []source.Post `json:"mastodon"`
	Video    []source.Post `json:"video"`
	AllPosts []source.Post `json:"all_posts"`
}

// TopicResult is the outcome of one topic analysis.
type TopicResult struct {
	Topic              string             `json:"topic"`
	RelatedTerms       []string           `json:"related_terms"`
	TotalPostsAnalyzed int                `json:"total_posts_analyzed"`
	EmotionSummary     map[string]float64 `json:"emotion_summary"`
	ReactionStats      ReactionStats      `json:"reaction_stats"`
	Results            Results            `json:"results"`
	ProcessingTime     float64            `json:"processing_time"`
}

// Analyzer runs the fetch, dedup, classify and rank pipeline for a topic.
type Analyzer struct {
	fetcher    *Fetcher
	classifier ml.EmotionClassifier
	scorer     ml.SimilarityScorer
	opts       Options
}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer(fetcher *Fetcher, classifier ml.EmotionClassifier, scorer ml.SimilarityScorer, opts Options) *Analyzer {
	if opts.MaxTerms <= 0 {
		opts.MaxTerms = DefaultMaxTerms
	}
	if opts.MaxPosts <= 0 {
		opts.MaxPosts = DefaultMaxPosts
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Analyzer{
		fetcher:    fetcher,
		classifier: classifier,
		scorer:     scorer,
		opts:       opts,
	}
}

// Analyze collects recent posts about topic and returns their ranked,
// emotion-weighted summary. Each source list holds at most limit/3 posts.
// It returns ErrNoPosts when nothing usable was found.
func (a *Analyzer) Analyze(ctx context.Context, topic string, limit int) (*TopicResult, error) {
	start := time.Now()

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	terms := ExpandTopic(topic, a.opts.MaxTerms)
	raw := a.fetcher.FetchAll(ctx, terms)
	posts := Deduplicate(raw, a.opts.MaxPosts)
	slog.Info("posts collected", "topic", topic, "terms", len(terms), "fetched", len(raw), "kept", len(posts))

	if len(posts) == 0 {
		return nil, ErrNoPosts
	}

	if err := Classify(ctx, a.classifier, posts, a.opts.BatchSize); err != nil {
		return nil, fmt.Errorf("classify posts: %w", err)
	}
	if err := ScoreSimilarity(ctx, a.scorer, topic, posts); err != nil {
		return nil, fmt.Errorf("score posts: %w", err)
	}
	ScorePosts(posts)

	ranked := Rank(posts)
	perSource := limit / 3

	elapsed := time.Since(start)
	metrics.PostsAnalyzed.Add(float64(len(ranked)))
	metrics.AnalyzeDuration.Observe(elapsed.Seconds())

	return &TopicResult{
		Topic:              topic,
		RelatedTerms:       terms,
		TotalPostsAnalyzed: len(ranked),
		EmotionSummary:     EmotionSummary(ranked),
		ReactionStats:      Reactions(ranked),
		Results: Results{
			Reddit:   TopBySource(ranked, source.SourceReddit, perSource),
			Mastodon: TopBySource(ranked, source.SourceMastodon, perSource),
			Video:    TopBySource(ranked, source.SourceVideo, perSource),
			AllPosts: ranked,
		},
		ProcessingTime: round(elapsed.Seconds(), 2),
	}, nil
}
