package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/elonfeng/moodradar/internal/store"
	"github.com/elonfeng/moodradar/pkg/alert"
	"github.com/elonfeng/moodradar/pkg/mood"
)

// TopicAnalyzer runs one topic analysis.
type TopicAnalyzer interface {
	Analyze(ctx context.Context, topic string, limit int) (*mood.TopicResult, error)
}

// TrendingRefresher recomputes the trending list.
type TrendingRefresher interface {
	Refresh(ctx context.Context, limit int) []string
}

// Options configures the scheduler. Zero values select defaults.
type Options struct {
	Topics           []string
	Limit            int
	TrendingLimit    int
	AnalyzeInterval  time.Duration
	TrendingInterval time.Duration
	MinShare         float64 // dominant emotion share that triggers an alert
}

// Scheduler periodically analyzes watch topics and refreshes trending topics.
type Scheduler struct {
	analyzer TopicAnalyzer
	trending TrendingRefresher // optional
	store    store.Store       // optional
	alertMgr *alert.Manager    // optional
	opts     Options
}

// New creates a new scheduler.
func New(analyzer TopicAnalyzer, trending TrendingRefresher, s store.Store, alertMgr *alert.Manager, opts Options) *Scheduler {
	if opts.AnalyzeInterval <= 0 {
		opts.AnalyzeInterval = time.Hour
	}
	if opts.TrendingInterval <= 0 {
		opts.TrendingInterval = 15 * time.Minute
	}
	if opts.Limit <= 0 {
		opts.Limit = mood.DefaultLimit
	}
	if opts.TrendingLimit <= 0 {
		opts.TrendingLimit = mood.DefaultTrendingLimit
	}
	if opts.MinShare <= 0 {
		opts.MinShare = 0.5
	}
	return &Scheduler{
		analyzer: analyzer,
		trending: trending,
		store:    s,
		alertMgr: alertMgr,
		opts:     opts,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	analyzeTicker := time.NewTicker(s.opts.AnalyzeInterval)
	trendingTicker := time.NewTicker(s.opts.TrendingInterval)
	defer analyzeTicker.Stop()
	defer trendingTicker.Stop()

	// Run immediately on start.
	s.RefreshTrending(ctx)
	s.AnalyzeWatched(ctx)

	slog.Info("scheduler running",
		"topics", len(s.opts.Topics),
		"analyze_every", s.opts.AnalyzeInterval,
		"trending_every", s.opts.TrendingInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return ctx.Err()
		case <-analyzeTicker.C:
			s.AnalyzeWatched(ctx)
		case <-trendingTicker.C:
			s.RefreshTrending(ctx)
		}
	}
}

// RefreshTrending recomputes the trending list so API reads hit a warm cache.
func (s *Scheduler) RefreshTrending(ctx context.Context) {
	if s.trending == nil {
		return
	}
	topics := s.trending.Refresh(ctx, s.opts.TrendingLimit)
	slog.Info("trending refreshed", "topics", len(topics))
}

// AnalyzeWatched analyzes every watch topic, records it and alerts when one
// emotion dominates.
func (s *Scheduler) AnalyzeWatched(ctx context.Context) {
	for _, topic := range s.opts.Topics {
		if ctx.Err() != nil {
			return
		}
		s.analyzeTopic(ctx, topic)
	}
}

func (s *Scheduler) analyzeTopic(ctx context.Context, topic string) {
	res, err := s.analyzer.Analyze(ctx, topic, s.opts.Limit)
	if errors.Is(err, mood.ErrNoPosts) {
		slog.Info("watch topic has no posts", "topic", topic)
		return
	}
	if err != nil {
		slog.Error("watch topic analysis failed", "topic", topic, "error", err)
		return
	}

	record := store.FromResult(res, store.OriginScheduler)
	slog.Info("watch topic analyzed",
		"topic", topic,
		"posts", res.TotalPostsAnalyzed,
		"emotion", record.DominantEmotion,
		"share", record.DominantShare)

	var lastAlert *store.Analysis
	if s.store != nil {
		alerted, err := s.store.ListAnalyses(ctx, store.ListOpts{Topic: topic, AlertedOnly: true, Limit: 1})
		if err != nil {
			slog.Warn("history lookup failed", "topic", topic, "error", err)
		} else if len(alerted) > 0 {
			lastAlert = &alerted[0]
		}
		if err := s.store.RecordAnalysis(ctx, record); err != nil {
			slog.Error("history record failed", "topic", topic, "error", err)
		}
	}

	if !s.shouldAlert(record, lastAlert) {
		return
	}

	if err := s.alertMgr.Broadcast(ctx, alert.NewNotification(res)); err != nil {
		slog.Error("mood alert failed", "topic", topic, "error", err)
		return
	}

	if s.store != nil && record.ID > 0 {
		_ = s.store.MarkAlerted(ctx, record.ID)
	}
	slog.Info("mood alert sent", "topic", topic, "emotion", record.DominantEmotion)
}

// shouldAlert fires once per dominant emotion: a topic that stays dominated
// by the emotion of its last alert stays quiet.
func (s *Scheduler) shouldAlert(current, lastAlert *store.Analysis) bool {
	if s.alertMgr == nil || !s.alertMgr.HasNotifiers() {
		return false
	}
	if current.DominantEmotion == "" || current.DominantShare < s.opts.MinShare {
		return false
	}
	if lastAlert != nil && lastAlert.DominantEmotion == current.DominantEmotion {
		return false
	}
	return true
}
