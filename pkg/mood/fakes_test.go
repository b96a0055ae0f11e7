package mood

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/elonfeng/moodradar/pkg/ml"
	"github.com/elonfeng/moodradar/pkg/source"
)

type fakeSource struct {
	name    source.SourceType
	timeout time.Duration
	byTerm  map[string][]source.Post
	all     []source.Post
	err     error
	delay   time.Duration // ignores ctx while sleeping

	mu    sync.Mutex
	terms []string
}

func (f *fakeSource) Name() source.SourceType { return f.name }

func (f *fakeSource) Timeout() time.Duration { return f.timeout }

func (f *fakeSource) Fetch(_ context.Context, term string, _ int) ([]source.Post, error) {
	f.mu.Lock()
	f.terms = append(f.terms, term)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.byTerm != nil {
		return f.byTerm[term], nil
	}
	return f.all, nil
}

// fakeClassifier returns joy with the configured confidence, or a fixed
// distribution per text when one is set.
type fakeClassifier struct {
	confidence float64
	byText     map[string][]ml.LabelScore
	err        error

	mu      sync.Mutex
	batches []int
}

func (f *fakeClassifier) Classify(_ context.Context, texts []string) ([][]ml.LabelScore, error) {
	f.mu.Lock()
	f.batches = append(f.batches, len(texts))
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	out := make([][]ml.LabelScore, len(texts))
	for i, t := range texts {
		if d, ok := f.byText[t]; ok {
			out[i] = d
			continue
		}
		conf := f.confidence
		if conf == 0 {
			conf = 0.8
		}
		out[i] = []ml.LabelScore{
			{Label: "neutral", Score: (1 - conf) / 2},
			{Label: "joy", Score: conf},
			{Label: "fear", Score: (1 - conf) / 2},
		}
	}
	return out, nil
}

type fakeScorer struct {
	byText map[string]float64
	err    error
	topic  string
}

func (f *fakeScorer) Similarity(_ context.Context, topic string, texts []string) ([]float64, error) {
	f.topic = topic
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(texts))
	for i, t := range texts {
		out[i] = f.byText[t]
	}
	return out, nil
}

type fakeTrending struct {
	name   source.SourceType
	titles []string
	err    error
	calls  int
}

func (f *fakeTrending) Name() source.SourceType { return f.name }

func (f *fakeTrending) Trending(_ context.Context, _ int) ([]string, error) {
	f.calls++
	return f.titles, f.err
}

type memCache struct {
	data map[int][]string
	sets int
}

func (m *memCache) GetTrending(_ context.Context, limit int) ([]string, bool, error) {
	v, ok := m.data[limit]
	return v, ok, nil
}

func (m *memCache) SetTrending(_ context.Context, limit int, topics []string) error {
	if m.data == nil {
		m.data = map[int][]string{}
	}
	m.data[limit] = topics
	m.sets++
	return nil
}

// longText pads s past the 30-rune noise threshold.
func longText(s string) string {
	return s + " " + strings.Repeat("x", 31)
}

func makePosts(src source.SourceType, n int) []source.Post {
	posts := make([]source.Post, n)
	for i := range posts {
		posts[i] = source.Post{
			Text:   longText(fmt.Sprintf("%s post %d", src, i)),
			Likes:  i,
			Source: src,
		}
	}
	return posts
}
