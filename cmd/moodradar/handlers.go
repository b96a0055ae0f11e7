package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/elonfeng/moodradar/internal/cache"
	"github.com/elonfeng/moodradar/internal/config"
	"github.com/elonfeng/moodradar/internal/scheduler"
	"github.com/elonfeng/moodradar/internal/store"
	"github.com/elonfeng/moodradar/pkg/alert"
	"github.com/elonfeng/moodradar/pkg/ml"
	"github.com/elonfeng/moodradar/pkg/mood"
	"github.com/elonfeng/moodradar/pkg/server"
	"github.com/elonfeng/moodradar/pkg/source"
)

// app holds the wired pipeline shared by every command.
type app struct {
	cfg       *config.Config
	sources   []source.Source
	analyzer  *mood.Analyzer
	discovery *mood.Discovery
	store     store.Store   // nil when history is disabled
	cache     *cache.Valkey // nil when caching is disabled
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	classifier, err := buildClassifier(cfg)
	if err != nil {
		return nil, err
	}
	scorer, err := buildScorer(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	a.sources = buildSources(cfg, scorer)
	if len(a.sources) == 0 {
		slog.Warn("no post sources configured; set REDDIT_CLIENT_ID/REDDIT_CLIENT_SECRET or YOUTUBE_API_KEY, or enable mastodon")
	}

	fetcher := mood.NewFetcher(a.sources, cfg.Analysis.Workers)
	a.analyzer = mood.NewAnalyzer(fetcher, classifier, scorer, mood.Options{
		MaxTerms:  cfg.Analysis.MaxTerms,
		MaxPosts:  cfg.Analysis.MaxPosts,
		BatchSize: cfg.Analysis.BatchSize,
	})

	if cfg.Database.Path != "" {
		db, err := store.New(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = db
	}

	var trendingCache mood.TrendingCache
	if cfg.Cache.Enabled && cfg.Cache.Address != "" {
		c, err := cache.New(ctx, cache.Options{
			Address:  cfg.Cache.Address,
			Password: cfg.Cache.Password,
			TTL:      cfg.Trending.ParseCacheTTL(),
		})
		if err != nil {
			slog.Warn("trending cache unavailable, continuing without it", "error", err)
		} else {
			a.cache = c
			trendingCache = c
		}
	}
	a.discovery = mood.NewDiscovery(buildTrendingSources(cfg, scorer), trendingCache)

	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("close store", "error", err)
		}
	}
	if a.cache != nil {
		a.cache.Close()
	}
}

func (a *app) record(ctx context.Context, res *mood.TopicResult, origin string) {
	if a.store == nil {
		return
	}
	if err := a.store.RecordAnalysis(ctx, store.FromResult(res, origin)); err != nil {
		slog.Warn("history record failed", "topic", res.Topic, "error", err)
	}
}

func buildClassifier(cfg *config.Config) (ml.EmotionClassifier, error) {
	switch strings.ToLower(cfg.ML.Classifier) {
	case "", "huggingface":
		return ml.NewHuggingFace(huggingFaceOptions(cfg)), nil
	case "vader":
		return ml.NewVader(), nil
	default:
		return nil, fmt.Errorf("unknown classifier %q (want huggingface or vader)", cfg.ML.Classifier)
	}
}

func buildScorer(cfg *config.Config) (ml.SimilarityScorer, error) {
	switch strings.ToLower(cfg.ML.Similarity) {
	case "", "huggingface":
		return ml.NewHuggingFace(huggingFaceOptions(cfg)), nil
	case "openai":
		if cfg.ML.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai similarity requires OPENAI_API_KEY")
		}
		return ml.NewOpenAIEmbeddings(cfg.ML.OpenAI.APIKey, cfg.ML.OpenAI.Model, cfg.ML.OpenAI.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown similarity backend %q (want huggingface or openai)", cfg.ML.Similarity)
	}
}

func huggingFaceOptions(cfg *config.Config) ml.HuggingFaceOptions {
	hf := cfg.ML.HuggingFace
	return ml.HuggingFaceOptions{
		BaseURL:         hf.BaseURL,
		Token:           hf.Token,
		EmotionModel:    hf.EmotionModel,
		SimilarityModel: hf.SimilarityModel,
		Timeout:         hf.ParseTimeout(),
	}
}

func buildSources(cfg *config.Config, scorer ml.SimilarityScorer) []source.Source {
	var sources []source.Source

	if cfg.RedditReady() {
		sources = append(sources, newReddit(cfg))
	}
	if cfg.MastodonReady() {
		m := cfg.Sources.Mastodon
		sources = append(sources, source.NewMastodon(source.MastodonOptions{
			BaseURL:     m.BaseURL,
			AccessToken: m.AccessToken,
			Limit:       m.Limit,
			MaxAge:      m.ParseMaxAge(),
			Timeout:     m.ParseTimeout(),
		}))
	}
	if cfg.YouTubeReady() {
		sources = append(sources, newYouTube(cfg, scorer))
	}

	return sources
}

func buildTrendingSources(cfg *config.Config, scorer ml.SimilarityScorer) []source.TrendingSource {
	var sources []source.TrendingSource

	if cfg.RedditReady() {
		sources = append(sources, newReddit(cfg))
	}
	if cfg.YouTubeReady() {
		sources = append(sources, newYouTube(cfg, scorer))
	}
	if cfg.Sources.RSS.Enabled && len(cfg.Sources.RSS.Feeds) > 0 {
		feeds := make([]source.Feed, len(cfg.Sources.RSS.Feeds))
		for i, f := range cfg.Sources.RSS.Feeds {
			feeds[i] = source.Feed{Name: f.Name, URL: f.URL}
		}
		sources = append(sources, source.NewFeeds(feeds))
	}

	return sources
}

func newReddit(cfg *config.Config) *source.Reddit {
	r := cfg.Sources.Reddit
	return source.NewReddit(source.RedditOptions{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		UserAgent:    r.UserAgent,
		SearchLimit:  r.SearchLimit,
		TimeFilter:   r.TimeFilter,
		Timeout:      r.ParseTimeout(),
		RateLimit:    r.RateLimit,
	})
}

func newYouTube(cfg *config.Config, scorer ml.SimilarityScorer) *source.YouTube {
	y := cfg.Sources.YouTube
	return source.NewYouTube(source.YouTubeOptions{
		APIKey:        y.APIKey,
		MaxVideos:     y.MaxVideos,
		MaxComments:   y.MaxComments,
		MinSimilarity: y.MinSimilarity,
		Region:        y.Region,
		Timeout:       y.ParseTimeout(),
	}, scorer)
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func buildServer(a *app, port int) *server.Server {
	if port == 0 {
		port = a.cfg.Server.Port
	}
	return server.New(a.analyzer, a.discovery, a.store, a.sources, server.Options{
		Port:           port,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		RateRPS:        a.cfg.Server.RateLimit.RPS,
		RateBurst:      a.cfg.Server.RateLimit.Burst,
		DefaultLimit:   a.cfg.Analysis.DefaultLimit,
	})
}

func runAnalyze(ctx context.Context, topic string, limit int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if limit <= 0 {
		limit = cfg.Analysis.DefaultLimit
	}

	res, err := a.analyzer.Analyze(ctx, topic, limit)
	if err != nil {
		return fmt.Errorf("analyze %q: %w", topic, err)
	}
	a.record(ctx, res, store.OriginCLI)

	if jsonOutput {
		return writeJSON(res)
	}

	emotion, share := mood.DominantEmotion(res.EmotionSummary)
	fmt.Printf("topic:    %s\n", res.Topic)
	fmt.Printf("terms:    %s\n", strings.Join(res.RelatedTerms, ", "))
	fmt.Printf("posts:    %d (likes %d, avg %.2f)\n", res.TotalPostsAnalyzed, res.ReactionStats.TotalLikes, res.ReactionStats.AvgLikes)
	fmt.Printf("dominant: %s %.0f%%\n", emotion, share*100)
	fmt.Printf("took:     %.2fs\n\n", res.ProcessingTime)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EMOTION\tSHARE")
	for _, e := range sortedEmotions(res.EmotionSummary) {
		fmt.Fprintf(w, "%s\t%.1f%%\n", e, res.EmotionSummary[e]*100)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tSOURCE\tEMOTION\tLIKES\tTEXT")
	for _, p := range res.Results.AllPosts {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%d\t%s\n",
			p.ScoreWeighted, p.Source, p.TopEmotion, p.Likes,
			source.Truncate(strings.ReplaceAll(p.Text, "\n", " "), 70))
	}
	return w.Flush()
}

func runTrending(ctx context.Context, limit int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if limit <= 0 {
		limit = cfg.Trending.Limit
	}

	topics := a.discovery.Trending(ctx, limit)
	if topics == nil {
		topics = []string{}
	}

	if jsonOutput {
		return writeJSON(map[string][]string{"trending": topics})
	}

	if len(topics) == 0 {
		fmt.Println("no trending topics found (check source credentials)")
		return nil
	}
	for i, t := range topics {
		fmt.Printf("%2d. %s\n", i+1, t)
	}
	return nil
}

func runHistory(ctx context.Context, topic string, limit int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("history is disabled (database.path is empty)")
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	runs, err := db.ListAnalyses(ctx, store.ListOpts{Topic: topic, Limit: limit})
	if err != nil {
		return fmt.Errorf("list analyses: %w", err)
	}

	if jsonOutput {
		if runs == nil {
			runs = []store.Analysis{}
		}
		return writeJSON(runs)
	}

	if len(runs) == 0 {
		fmt.Println("no analyses recorded yet (try: moodradar analyze <topic>)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tTOPIC\tPOSTS\tDOMINANT\tSHARE\tORIGIN\tALERTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.0f%%\t%s\t%t\n",
			r.CreatedAt.Format(time.RFC3339), r.Topic, r.PostCount,
			r.DominantEmotion, r.DominantShare*100, r.Origin, r.Alerted)
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return buildServer(a, port).ListenAndServe(ctx)
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(a.analyzer, a.discovery, a.store, buildAlertManager(cfg), scheduler.Options{
		Topics:           cfg.Watch.Topics,
		Limit:            cfg.Watch.Limit,
		TrendingLimit:    cfg.Trending.Limit,
		AnalyzeInterval:  cfg.Schedule.ParseAnalyzeInterval(),
		TrendingInterval: cfg.Schedule.ParseTrendingInterval(),
		MinShare:         cfg.Alerts.MinShare,
	})

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("scheduler stopped", "error", err)
		}
	}()

	return buildServer(a, port).ListenAndServe(ctx)
}

func sortedEmotions(summary map[string]float64) []string {
	labels := make([]string, 0, len(summary))
	for label := range summary {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if summary[labels[i]] != summary[labels[j]] {
			return summary[labels[i]] > summary[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
