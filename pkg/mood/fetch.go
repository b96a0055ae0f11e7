package mood

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/moodradar/internal/metrics"
	"github.com/elonfeng/moodradar/pkg/source"
)

const (
	DefaultWorkers      = 32
	defaultFetchTimeout = 30 * time.Second
)

// Fetcher runs every (term, source) fetch concurrently on a bounded pool.
type Fetcher struct {
	sources []source.Source
	workers int
}

// NewFetcher creates a new fetch orchestrator. workers <= 0 selects DefaultWorkers.
func NewFetcher(sources []source.Source, workers int) *Fetcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Fetcher{sources: sources, workers: workers}
}

// Sources returns the configured sources.
func (f *Fetcher) Sources() []source.Source { return f.sources }

type fetchTask struct {
	term string
	src  source.Source
}

// FetchAll fetches every term from every source. A failed or timed-out fetch
// contributes nothing and never affects the others. Results are flattened in
// task order (term-major).
func (f *Fetcher) FetchAll(ctx context.Context, terms []string) []source.Post {
	var tasks []fetchTask
	for _, term := range terms {
		for _, src := range f.sources {
			tasks = append(tasks, fetchTask{term: term, src: src})
		}
	}
	if len(tasks) == 0 {
		return nil
	}

	results := make([][]source.Post, len(tasks))

	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			results[i] = f.fetchOne(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	var posts []source.Post
	for _, r := range results {
		posts = append(posts, r...)
	}
	return posts
}

type fetchOutcome struct {
	posts []source.Post
	err   error
}

// fetchOne returns as soon as the fetch finishes or its budget runs out.
// A fetch that ignores cancellation keeps running; its late result is dropped.
func (f *Fetcher) fetchOne(ctx context.Context, task fetchTask) []source.Post {
	name := string(task.src.Name())
	budget := task.src.Timeout()
	if budget <= 0 {
		budget = defaultFetchTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	done := make(chan fetchOutcome, 1)
	go func() {
		posts, err := task.src.Fetch(ctx, task.term, 0)
		done <- fetchOutcome{posts: posts, err: err}
	}()

	var out fetchOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
	}
	elapsed := time.Since(start)
	metrics.SourceFetchDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if out.err != nil {
		status := metrics.StatusError
		if errors.Is(out.err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = metrics.StatusTimeout
		}
		metrics.SourceFetchTotal.WithLabelValues(name, status).Inc()
		slog.Warn("source fetch failed", "source", name, "term", task.term, "status", status, "elapsed", elapsed, "error", out.err)
		return nil
	}

	metrics.SourceFetchTotal.WithLabelValues(name, metrics.StatusOK).Inc()
	slog.Debug("source fetched", "source", name, "term", task.term, "posts", len(out.posts), "elapsed", elapsed)
	return out.posts
}
