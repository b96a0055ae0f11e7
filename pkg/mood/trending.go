package mood

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/moodradar/pkg/source"
)

const (
	DefaultTrendingLimit = 10
	maxTopicRunes        = 80
)

// TrendingCache stores a computed trending list per limit.
type TrendingCache interface {
	GetTrending(ctx context.Context, limit int) ([]string, bool, error)
	SetTrending(ctx context.Context, limit int, topics []string) error
}

// Discovery surfaces candidate topics from raw source activity.
type Discovery struct {
	sources []source.TrendingSource
	cache   TrendingCache // optional, nil = disabled
}

// NewDiscovery creates a new trending discovery over sources.
func NewDiscovery(sources []source.TrendingSource, cache TrendingCache) *Discovery {
	return &Discovery{sources: sources, cache: cache}
}

// Trending returns up to limit candidate topics. It never fails: sources or
// a cache that error are logged and skipped.
func (d *Discovery) Trending(ctx context.Context, limit int) []string {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}

	if d.cache != nil {
		topics, ok, err := d.cache.GetTrending(ctx, limit)
		if err != nil {
			slog.Warn("trending cache read failed", "error", err)
		} else if ok {
			return topics
		}
	}

	return d.Refresh(ctx, limit)
}

// Refresh recomputes the trending list from the sources and stores it in the cache.
func (d *Discovery) Refresh(ctx context.Context, limit int) []string {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}

	collected := make([][]string, len(d.sources))
	var g errgroup.Group
	for i, src := range d.sources {
		i, src := i, src
		g.Go(func() error {
			titles, err := src.Trending(ctx, limit)
			if err != nil {
				slog.Warn("trending source failed", "source", string(src.Name()), "error", err)
				return nil
			}
			collected[i] = titles
			return nil
		})
	}
	_ = g.Wait()

	topics := mergeTopics(collected, limit)

	if d.cache != nil && len(topics) > 0 {
		if err := d.cache.SetTrending(ctx, limit, topics); err != nil {
			slog.Warn("trending cache write failed", "error", err)
		}
	}
	return topics
}

// mergeTopics keeps the first occurrence of each title in source order,
// cuts each to 80 runes and returns at most limit of them.
func mergeTopics(lists [][]string, limit int) []string {
	seen := make(map[string]struct{})
	topics := make([]string, 0, limit)
	for _, list := range lists {
		for _, title := range list {
			title = strings.TrimSpace(title)
			if title == "" {
				continue
			}
			if _, dup := seen[title]; dup {
				continue
			}
			seen[title] = struct{}{}
			topics = append(topics, source.Truncate(title, maxTopicRunes))
			if len(topics) >= limit {
				return topics
			}
		}
	}
	return topics
}
