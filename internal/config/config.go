package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Sources  SourcesConfig  `yaml:"sources"`
	ML       MLConfig       `yaml:"ml"`
	Trending TrendingConfig `yaml:"trending"`
	Cache    CacheConfig    `yaml:"cache"`
	Watch    WatchConfig    `yaml:"watch"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig configures the SQLite analysis history. An empty path
// disables it.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures the background watch and trending intervals.
type ScheduleConfig struct {
	AnalyzeInterval  string `yaml:"analyze_interval"`
	TrendingInterval string `yaml:"trending_interval"`
}

// ParseAnalyzeInterval returns the watch-topic interval as time.Duration.
func (s ScheduleConfig) ParseAnalyzeInterval() time.Duration {
	return parseDuration(s.AnalyzeInterval, time.Hour)
}

// ParseTrendingInterval returns the trending refresh interval as time.Duration.
func (s ScheduleConfig) ParseTrendingInterval() time.Duration {
	return parseDuration(s.TrendingInterval, 15*time.Minute)
}

// AnalysisConfig tunes the analysis pipeline.
type AnalysisConfig struct {
	MaxTerms     int `yaml:"max_terms"`
	MaxPosts     int `yaml:"max_posts"`
	BatchSize    int `yaml:"batch_size"`
	Workers      int `yaml:"workers"`
	DefaultLimit int `yaml:"default_limit"`
}

// SourcesConfig holds configuration for all data sources.
type SourcesConfig struct {
	Reddit   RedditConfig   `yaml:"reddit"`
	Mastodon MastodonConfig `yaml:"mastodon"`
	YouTube  YouTubeConfig  `yaml:"youtube"`
	RSS      RSSConfig      `yaml:"rss"`
}

// RedditConfig for the Reddit source.
type RedditConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ClientID     string  `yaml:"client_id"`
	ClientSecret string  `yaml:"client_secret"`
	UserAgent    string  `yaml:"user_agent"`
	SearchLimit  int     `yaml:"search_limit"`
	TimeFilter   string  `yaml:"time_filter"`
	Timeout      string  `yaml:"timeout"`
	RateLimit    float64 `yaml:"rate_limit"` // requests per second
}

// ParseTimeout returns the fetch budget as time.Duration.
func (r RedditConfig) ParseTimeout() time.Duration { return parseDuration(r.Timeout, 30*time.Second) }

// MastodonConfig for the Mastodon source.
type MastodonConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
	Limit       int    `yaml:"limit"`
	MaxAge      string `yaml:"max_age"`
	Timeout     string `yaml:"timeout"`
}

// ParseMaxAge returns the status age window as time.Duration.
func (m MastodonConfig) ParseMaxAge() time.Duration { return parseDuration(m.MaxAge, 24*time.Hour) }

// ParseTimeout returns the fetch budget as time.Duration.
func (m MastodonConfig) ParseTimeout() time.Duration { return parseDuration(m.Timeout, 30*time.Second) }

// YouTubeConfig for the video source.
type YouTubeConfig struct {
	Enabled       bool    `yaml:"enabled"`
	APIKey        string  `yaml:"api_key"`
	MaxVideos     int     `yaml:"max_videos"`
	MaxComments   int     `yaml:"max_comments"`
	MinSimilarity float64 `yaml:"min_similarity"`
	Region        string  `yaml:"region"`
	Timeout       string  `yaml:"timeout"`
}

// ParseTimeout returns the fetch budget as time.Duration.
func (y YouTubeConfig) ParseTimeout() time.Duration { return parseDuration(y.Timeout, 60*time.Second) }

// RSSConfig for the trending feed source.
type RSSConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// MLConfig selects and configures the inference backends.
type MLConfig struct {
	Classifier  string            `yaml:"classifier"` // "huggingface" or "vader"
	Similarity  string            `yaml:"similarity"` // "huggingface" or "openai"
	HuggingFace HuggingFaceConfig `yaml:"huggingface"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
}

// HuggingFaceConfig configures the Hugging Face inference API.
type HuggingFaceConfig struct {
	Token           string `yaml:"token"`
	BaseURL         string `yaml:"base_url"`
	EmotionModel    string `yaml:"emotion_model"`
	SimilarityModel string `yaml:"similarity_model"`
	Timeout         string `yaml:"timeout"`
}

// ParseTimeout returns the request timeout as time.Duration.
func (h HuggingFaceConfig) ParseTimeout() time.Duration { return parseDuration(h.Timeout, 60*time.Second) }

// OpenAIConfig configures the embeddings similarity backend.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"` // custom endpoint (optional)
}

// TrendingConfig configures trending discovery.
type TrendingConfig struct {
	Limit    int    `yaml:"limit"`
	CacheTTL string `yaml:"cache_ttl"`
}

// ParseCacheTTL returns the trending cache TTL as time.Duration.
func (t TrendingConfig) ParseCacheTTL() time.Duration { return parseDuration(t.CacheTTL, 10*time.Minute) }

// CacheConfig configures the optional valkey trending cache.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
}

// WatchConfig lists topics the scheduler analyzes periodically.
type WatchConfig struct {
	Topics []string `yaml:"topics"`
	Limit  int      `yaml:"limit"`
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	MinShare float64       `yaml:"min_share"` // dominant emotion share that triggers an alert
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
	Webhook  WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int             `yaml:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig is the per-client token bucket for /analyze.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./moodradar.db"},
		Schedule: ScheduleConfig{
			AnalyzeInterval:  "1h",
			TrendingInterval: "15m",
		},
		Analysis: AnalysisConfig{
			MaxTerms:     6,
			MaxPosts:     200,
			BatchSize:    32,
			Workers:      32,
			DefaultLimit: 20,
		},
		Sources: SourcesConfig{
			Reddit: RedditConfig{
				Enabled:     true,
				UserAgent:   "moodradar/1.0",
				SearchLimit: 100,
				TimeFilter:  "day",
				Timeout:     "30s",
				RateLimit:   1,
			},
			Mastodon: MastodonConfig{
				Enabled: true,
				BaseURL: "https://mastodon.social",
				Limit:   50,
				MaxAge:  "24h",
				Timeout: "30s",
			},
			YouTube: YouTubeConfig{
				Enabled:       true,
				MaxVideos:     3,
				MaxComments:   50,
				MinSimilarity: 0.3,
				Region:        "US",
				Timeout:       "60s",
			},
			RSS: RSSConfig{
				Enabled: false,
				Feeds: []FeedItem{
					{Name: "BBC News", URL: "https://feeds.bbci.co.uk/news/rss.xml"},
					{Name: "NPR News", URL: "https://feeds.npr.org/1001/rss.xml"},
				},
			},
		},
		ML: MLConfig{
			Classifier: "huggingface",
			Similarity: "huggingface",
			HuggingFace: HuggingFaceConfig{
				BaseURL:         "https://router.huggingface.co/hf-inference/models",
				EmotionModel:    "j-hartmann/emotion-english-distilroberta-base",
				SimilarityModel: "sentence-transformers/all-MiniLM-L6-v2",
				Timeout:         "60s",
			},
			OpenAI: OpenAIConfig{Model: "text-embedding-3-small"},
		},
		Trending: TrendingConfig{Limit: 10, CacheTTL: "10m"},
		Watch:    WatchConfig{Limit: 20},
		Alerts:   AlertsConfig{MinShare: 0.5},
		Server: ServerConfig{
			Port:           8000,
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
			RateLimit:      RateLimitConfig{RPS: 1, Burst: 5},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("no .env file found, using OS environment", "path", path)
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// RedditReady reports whether Reddit is enabled and has credentials.
func (c *Config) RedditReady() bool {
	r := c.Sources.Reddit
	return r.Enabled && r.ClientID != "" && r.ClientSecret != ""
}

// MastodonReady reports whether Mastodon is enabled. Public tag timelines
// need no token.
func (c *Config) MastodonReady() bool {
	return c.Sources.Mastodon.Enabled && c.Sources.Mastodon.BaseURL != ""
}

// YouTubeReady reports whether the video source is enabled and has an API key.
func (c *Config) YouTubeReady() bool {
	return c.Sources.YouTube.Enabled && c.Sources.YouTube.APIKey != ""
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("MOODRADAR_DB_PATH"); ok {
		cfg.Database.Path = v
	}
	if v := os.Getenv("MOODRADAR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MOODRADAR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		cfg.Sources.Reddit.ClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		cfg.Sources.Reddit.ClientSecret = v
	}
	if v := os.Getenv("REDDIT_USER_AGENT"); v != "" {
		cfg.Sources.Reddit.UserAgent = v
	}
	if v := os.Getenv("MASTODON_ACCESS_TOKEN"); v != "" {
		cfg.Sources.Mastodon.AccessToken = v
	}
	if v := os.Getenv("MASTODON_BASE_URL"); v != "" {
		cfg.Sources.Mastodon.BaseURL = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.Sources.YouTube.APIKey = v
	}
	if v := os.Getenv("HF_API_TOKEN"); v != "" {
		cfg.ML.HuggingFace.Token = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.ML.OpenAI.APIKey = v
	}
	if v := os.Getenv("VALKEY_ADDRESS"); v != "" {
		cfg.Cache.Address = v
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("VALKEY_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
