// Package ml defines the inference capabilities the mood pipeline consumes
// and the clients that provide them.
package ml

import (
	"context"
	"math"
)

// LabelScore is one label of a classifier distribution.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// EmotionClassifier returns, for every input text, a score for each label of
// a fixed emotion label set. Scores are in [0,1].
type EmotionClassifier interface {
	Classify(ctx context.Context, texts []string) ([][]LabelScore, error)
}

// SimilarityScorer returns the cosine similarity in [-1,1] between topic and
// each text, in input order.
type SimilarityScorer interface {
	Similarity(ctx context.Context, topic string, texts []string) ([]float64, error)
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// empty, zero, or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
