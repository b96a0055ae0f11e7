package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MOODRADAR_DB_PATH", "")
	os.Unsetenv("MOODRADAR_DB_PATH")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.MaxTerms != 6 || cfg.Analysis.MaxPosts != 200 || cfg.Analysis.BatchSize != 32 {
		t.Errorf("analysis defaults = %+v", cfg.Analysis)
	}
	if cfg.Sources.YouTube.ParseTimeout() != 60*time.Second {
		t.Errorf("youtube timeout = %v", cfg.Sources.YouTube.ParseTimeout())
	}
	if cfg.Sources.Mastodon.ParseMaxAge() != 24*time.Hour {
		t.Errorf("mastodon max age = %v", cfg.Sources.Mastodon.ParseMaxAge())
	}
	if cfg.Database.Path != "./moodradar.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
analysis:
  max_posts: 50
sources:
  reddit:
    client_id: from-file
    timeout: 5s
  youtube:
    timeout: bogus
watch:
  topics: [climate, ai]
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("REDDIT_CLIENT_SECRET", "s3cret")
	t.Setenv("YOUTUBE_API_KEY", "yt")
	t.Setenv("VALKEY_ADDRESS", "localhost:6379")
	t.Setenv("MOODRADAR_DB_PATH", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Analysis.MaxPosts != 50 || cfg.Analysis.MaxTerms != 6 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Sources.Reddit.ParseTimeout() != 5*time.Second {
		t.Errorf("reddit timeout = %v", cfg.Sources.Reddit.ParseTimeout())
	}
	if cfg.Sources.YouTube.ParseTimeout() != 60*time.Second {
		t.Errorf("bad duration should fall back, got %v", cfg.Sources.YouTube.ParseTimeout())
	}
	if !cfg.RedditReady() || !cfg.YouTubeReady() {
		t.Error("reddit and youtube should be ready with credentials")
	}
	if !cfg.Cache.Enabled || cfg.Cache.Address != "localhost:6379" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Database.Path != "" {
		t.Errorf("empty MOODRADAR_DB_PATH should disable history, got %q", cfg.Database.Path)
	}
	if len(cfg.Watch.Topics) != 2 {
		t.Errorf("watch topics = %v", cfg.Watch.Topics)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadDotEnv(filepath.Join(dir, ".env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("MOODRADAR_TEST_TOKEN=abc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MOODRADAR_TEST_TOKEN", "")
	os.Unsetenv("MOODRADAR_TEST_TOKEN")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("MOODRADAR_TEST_TOKEN"); got != "abc" {
		t.Errorf("MOODRADAR_TEST_TOKEN = %q", got)
	}
}
