package source

import (
	"context"
	"time"
)

// SourceType identifies which platform a post came from.
type SourceType string

const (
	SourceReddit   SourceType = "reddit"
	SourceMastodon SourceType = "mastodon"
	SourceVideo    SourceType = "video"
	SourceFeed     SourceType = "feed"
)

// Post is the unit of analysis shared by every source.
type Post struct {
	Text          string             `json:"text"`
	Likes         int                `json:"likes"`
	Source        SourceType         `json:"source"`
	URL           string             `json:"url"`
	Similarity    *float64           `json:"similarity,omitempty"`
	TopEmotion    string             `json:"top_emotion,omitempty"`
	TopConfidence float64            `json:"top_confidence,omitempty"`
	AllScores     map[string]float64 `json:"all_scores,omitempty"`
	ScoreWeighted float64            `json:"score_weighted"`
}

// Source fetches topic-relevant posts from one platform.
// A limit <= 0 selects the source's default.
type Source interface {
	Name() SourceType
	Timeout() time.Duration
	Fetch(ctx context.Context, term string, limit int) ([]Post, error)
}

// TrendingSource surfaces candidate topics from raw platform activity.
type TrendingSource interface {
	Name() SourceType
	Trending(ctx context.Context, limit int) ([]string, error)
}

// AnalyzedSourceTypes returns the sources whose posts are scored.
func AnalyzedSourceTypes() []SourceType {
	return []SourceType{
		SourceReddit,
		SourceMastodon,
		SourceVideo,
	}
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
