package ml

import (
	"context"
	"math"

	"github.com/jonreiter/govader"
)

// Vader is an offline EmotionClassifier backed by the VADER sentiment
// lexicon. Its label set is positive, neutral and negative.
type Vader struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVader creates a new lexicon classifier.
func NewVader() *Vader {
	return &Vader{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Classify returns the positive/neutral/negative proportions of each text.
func (v *Vader) Classify(ctx context.Context, texts []string) ([][]LabelScore, error) {
	out := make([][]LabelScore, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s := v.analyzer.PolarityScores(text)
		pos, neu, neg := s.Positive, s.Neutral, s.Negative
		total := pos + neu + neg
		if total == 0 || math.IsNaN(total) {
			pos, neu, neg, total = 0, 1, 0, 1
		}

		out[i] = []LabelScore{
			{Label: "positive", Score: pos / total},
			{Label: "neutral", Score: neu / total},
			{Label: "negative", Score: neg / total},
		}
	}
	return out, nil
}
