// Package store keeps a history of analysis runs. Only aggregates are
// recorded; fetched post content is never persisted.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/moodradar/pkg/mood"
)

// Where an analysis run came from.
const (
	OriginAPI       = "api"
	OriginCLI       = "cli"
	OriginScheduler = "scheduler"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("not found")

// Analysis is the aggregate record of one topic analysis.
type Analysis struct {
	ID              int64              `db:"id" json:"id"`
	Topic           string             `db:"topic" json:"topic"`
	TermsJSON       string             `db:"terms" json:"-"`
	Terms           []string           `db:"-" json:"related_terms"`
	PostCount       int                `db:"post_count" json:"total_posts_analyzed"`
	DominantEmotion string             `db:"dominant_emotion" json:"dominant_emotion"`
	DominantShare   float64            `db:"dominant_share" json:"dominant_share"`
	SummaryJSON     string             `db:"emotion_summary" json:"-"`
	Summary         map[string]float64 `db:"-" json:"emotion_summary"`
	TotalLikes      int                `db:"total_likes" json:"total_likes"`
	AvgLikes        float64            `db:"avg_likes" json:"avg_likes"`
	ProcessingTime  float64            `db:"processing_time" json:"processing_time"`
	Origin          string             `db:"origin" json:"origin"`
	Alerted         bool               `db:"alerted" json:"alerted"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
}

// FromResult builds the aggregate record of a topic result.
func FromResult(res *mood.TopicResult, origin string) *Analysis {
	emotion, share := mood.DominantEmotion(res.EmotionSummary)
	return &Analysis{
		Topic:           res.Topic,
		Terms:           res.RelatedTerms,
		PostCount:       res.TotalPostsAnalyzed,
		DominantEmotion: emotion,
		DominantShare:   share,
		Summary:         res.EmotionSummary,
		TotalLikes:      res.ReactionStats.TotalLikes,
		AvgLikes:        res.ReactionStats.AvgLikes,
		ProcessingTime:  res.ProcessingTime,
		Origin:          origin,
	}
}

// ListOpts controls history listing.
type ListOpts struct {
	Topic       string
	Since       time.Time
	AlertedOnly bool
	Limit       int
}

// Store is the persistence interface.
type Store interface {
	RecordAnalysis(ctx context.Context, a *Analysis) error
	ListAnalyses(ctx context.Context, opts ListOpts) ([]Analysis, error)
	LatestAnalysis(ctx context.Context, topic string) (*Analysis, error)
	MarkAlerted(ctx context.Context, id int64) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordAnalysis(ctx context.Context, a *Analysis) error {
	termsJSON, _ := json.Marshal(a.Terms)
	summaryJSON, _ := json.Marshal(a.Summary)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Origin == "" {
		a.Origin = OriginAPI
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (topic, terms, post_count, dominant_emotion, dominant_share, emotion_summary,
			total_likes, avg_likes, processing_time, origin, alerted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Topic, string(termsJSON), a.PostCount, a.DominantEmotion, a.DominantShare, string(summaryJSON),
		a.TotalLikes, a.AvgLikes, a.ProcessingTime, a.Origin, a.Alerted, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis %q: %w", a.Topic, err)
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, opts ListOpts) ([]Analysis, error) {
	query := "SELECT * FROM analyses WHERE 1=1"
	var args []any

	if topic := strings.TrimSpace(opts.Topic); topic != "" {
		query += " AND topic = ? COLLATE NOCASE"
		args = append(args, topic)
	}
	if !opts.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, opts.Since)
	}
	if opts.AlertedOnly {
		query += " AND alerted = 1"
	}

	query += " ORDER BY created_at DESC, id DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var analyses []Analysis
	if err := s.db.SelectContext(ctx, &analyses, query, args...); err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}

	for i := range analyses {
		decode(&analyses[i])
	}
	return analyses, nil
}

func (s *SQLiteStore) LatestAnalysis(ctx context.Context, topic string) (*Analysis, error) {
	var a Analysis
	err := s.db.GetContext(ctx, &a,
		"SELECT * FROM analyses WHERE topic = ? COLLATE NOCASE ORDER BY created_at DESC, id DESC LIMIT 1",
		strings.TrimSpace(topic))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest analysis %q: %w", topic, err)
	}
	decode(&a)
	return &a, nil
}

func (s *SQLiteStore) MarkAlerted(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE analyses SET alerted = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark alerted %d: %w", id, err)
	}
	return nil
}

func decode(a *Analysis) {
	json.Unmarshal([]byte(a.TermsJSON), &a.Terms)
	json.Unmarshal([]byte(a.SummaryJSON), &a.Summary)
}
