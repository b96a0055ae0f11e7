package mood

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/moodradar/pkg/ml"
	"github.com/elonfeng/moodradar/pkg/source"
)

const (
	DefaultBatchSize = 32

	maxClassifyRunes    = 512
	classifyParallelism = 4
)

// Classify annotates posts in place with their emotion distribution.
// Texts are cut to 512 runes and sent in batches of batchSize.
func Classify(ctx context.Context, clf ml.EmotionClassifier, posts []source.Post, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(classifyParallelism)

	for start := 0; start < len(posts); start += batchSize {
		start := start
		end := min(start+batchSize, len(posts))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, p := range posts[start:end] {
				texts = append(texts, source.Truncate(p.Text, maxClassifyRunes))
			}

			dists, err := clf.Classify(gctx, texts)
			if err != nil {
				return fmt.Errorf("classify batch %d-%d: %w", start, end, err)
			}
			if len(dists) != len(texts) {
				return fmt.Errorf("classify batch %d-%d: got %d results for %d texts", start, end, len(dists), len(texts))
			}

			for i, dist := range dists {
				if err := applyDistribution(&posts[start+i], dist); err != nil {
					return fmt.Errorf("classify post %d: %w", start+i, err)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func applyDistribution(p *source.Post, dist []ml.LabelScore) error {
	if len(dist) == 0 {
		return fmt.Errorf("empty emotion distribution")
	}

	sorted := make([]ml.LabelScore, len(dist))
	copy(sorted, dist)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	scores := make(map[string]float64, len(sorted))
	for _, ls := range sorted {
		if _, ok := scores[ls.Label]; !ok {
			scores[ls.Label] = round3(ls.Score)
		}
	}

	p.TopEmotion = sorted[0].Label
	p.TopConfidence = scores[sorted[0].Label]
	p.AllScores = scores
	return nil
}

// ScoreSimilarity sets each post's similarity to topic, replacing any value
// computed earlier against an expanded search term.
func ScoreSimilarity(ctx context.Context, scorer ml.SimilarityScorer, topic string, posts []source.Post) error {
	if len(posts) == 0 {
		return nil
	}

	texts := make([]string, len(posts))
	for i, p := range posts {
		texts[i] = p.Text
	}

	sims, err := scorer.Similarity(ctx, topic, texts)
	if err != nil {
		return fmt.Errorf("score similarity: %w", err)
	}
	if len(sims) != len(posts) {
		return fmt.Errorf("score similarity: got %d scores for %d posts", len(sims), len(posts))
	}

	for i := range posts {
		sim := round3(sims[i])
		posts[i].Similarity = &sim
	}
	return nil
}
