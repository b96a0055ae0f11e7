package mood

import (
	"math"
	"sort"

	"github.com/elonfeng/moodradar/pkg/source"
)

// ReactionStats summarizes engagement across analyzed posts.
type ReactionStats struct {
	TotalLikes int     `json:"total_likes"`
	AvgLikes   float64 `json:"avg_likes"`
}

// CompositeScore combines classifier confidence, engagement and topical
// similarity into one ranking key. The similarity factor goes negative
// below -0.5 and is kept that way.
func CompositeScore(confidence float64, likes int, similarity float64) float64 {
	return round3(confidence * (1 + math.Log(float64(likes)+2)) * (0.5 + similarity))
}

// ScorePosts sets ScoreWeighted on every post. A missing similarity counts as 0.
func ScorePosts(posts []source.Post) {
	for i := range posts {
		sim := 0.0
		if posts[i].Similarity != nil {
			sim = *posts[i].Similarity
		}
		posts[i].ScoreWeighted = CompositeScore(posts[i].TopConfidence, posts[i].Likes, sim)
	}
}

// Rank returns a copy of posts sorted by ScoreWeighted, highest first.
// Equal scores keep their input order.
func Rank(posts []source.Post) []source.Post {
	ranked := make([]source.Post, len(posts))
	copy(ranked, posts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ScoreWeighted > ranked[j].ScoreWeighted
	})
	return ranked
}

// TopBySource returns the first n posts of ranked that came from src.
func TopBySource(ranked []source.Post, src source.SourceType, n int) []source.Post {
	top := make([]source.Post, 0, max(n, 0))
	for _, p := range ranked {
		if len(top) >= n {
			break
		}
		if p.Source == src {
			top = append(top, p)
		}
	}
	return top
}

// EmotionSummary returns each top emotion's share of the engagement-weighted
// total. Shares sum to 1 unless every weight is zero.
func EmotionSummary(posts []source.Post) map[string]float64 {
	weights := make(map[string]float64)
	total := 0.0
	for _, p := range posts {
		w := p.TopConfidence * math.Log(float64(p.Likes)+2)
		weights[p.TopEmotion] += w
		total += w
	}
	if total == 0 {
		total = 1
	}

	summary := make(map[string]float64, len(weights))
	for label, w := range weights {
		summary[label] = round3(w / total)
	}
	return summary
}

// DominantEmotion returns the label with the largest share. Ties go to the
// alphabetically first label.
func DominantEmotion(summary map[string]float64) (string, float64) {
	var (
		best  string
		share = -1.0
	)
	for label, v := range summary {
		if v > share || (v == share && label < best) {
			best, share = label, v
		}
	}
	if share < 0 {
		return "", 0
	}
	return best, share
}

// Reactions returns total likes and the mean rounded to 2 decimals.
func Reactions(posts []source.Post) ReactionStats {
	var stats ReactionStats
	for _, p := range posts {
		stats.TotalLikes += p.Likes
	}
	if len(posts) > 0 {
		stats.AvgLikes = round(float64(stats.TotalLikes)/float64(len(posts)), 2)
	}
	return stats
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func round3(x float64) float64 { return round(x, 3) }
