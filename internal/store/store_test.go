package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/elonfeng/moodradar/pkg/mood"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFromResult(t *testing.T) {
	res := &mood.TopicResult{
		Topic:              "climate",
		RelatedTerms:       []string{"climate", "climate news"},
		TotalPostsAnalyzed: 12,
		EmotionSummary:     map[string]float64{"fear": 0.6, "joy": 0.4},
		ReactionStats:      mood.ReactionStats{TotalLikes: 30, AvgLikes: 2.5},
		ProcessingTime:     1.25,
	}
	a := FromResult(res, OriginScheduler)
	if a.DominantEmotion != "fear" || a.DominantShare != 0.6 {
		t.Errorf("dominant = %s %v", a.DominantEmotion, a.DominantShare)
	}
	if a.PostCount != 12 || a.TotalLikes != 30 || a.Origin != OriginScheduler {
		t.Errorf("unexpected record %+v", a)
	}
}

func TestRecordAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	records := []*Analysis{
		{Topic: "climate", Terms: []string{"climate"}, Summary: map[string]float64{"fear": 1}, DominantEmotion: "fear", CreatedAt: base},
		{Topic: "AI", Summary: map[string]float64{"joy": 1}, DominantEmotion: "joy", CreatedAt: base.Add(time.Hour)},
		{Topic: "Climate", Summary: map[string]float64{"anger": 1}, DominantEmotion: "anger", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range records {
		if err := s.RecordAnalysis(ctx, r); err != nil {
			t.Fatalf("RecordAnalysis: %v", err)
		}
		if r.ID == 0 {
			t.Error("RecordAnalysis should set ID")
		}
	}

	all, err := s.ListAnalyses(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("ListAnalyses: %v", err)
	}
	if len(all) != 3 || all[0].DominantEmotion != "anger" {
		t.Fatalf("ListAnalyses() newest first, got %+v", all)
	}
	if all[2].Terms[0] != "climate" || all[2].Summary["fear"] != 1 || all[2].Origin != OriginAPI {
		t.Errorf("decoded record = %+v", all[2])
	}

	climate, err := s.ListAnalyses(ctx, ListOpts{Topic: "climate", Limit: 10})
	if err != nil {
		t.Fatalf("ListAnalyses(topic): %v", err)
	}
	if len(climate) != 2 {
		t.Errorf("topic filter returned %d records, want 2", len(climate))
	}

	limited, _ := s.ListAnalyses(ctx, ListOpts{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d", len(limited))
	}
}

func TestLatestAnalysisAndMarkAlerted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.LatestAnalysis(ctx, "none"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestAnalysis error = %v, want ErrNotFound", err)
	}

	a := &Analysis{Topic: "ai", DominantEmotion: "joy"}
	if err := s.RecordAnalysis(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkAlerted(ctx, a.ID); err != nil {
		t.Fatalf("MarkAlerted: %v", err)
	}

	got, err := s.LatestAnalysis(ctx, "AI")
	if err != nil {
		t.Fatalf("LatestAnalysis: %v", err)
	}
	if !got.Alerted || got.ID != a.ID {
		t.Errorf("latest = %+v", got)
	}

	if err := s.RecordAnalysis(ctx, &Analysis{Topic: "ai", DominantEmotion: "fear"}); err != nil {
		t.Fatal(err)
	}
	alerted, err := s.ListAnalyses(ctx, ListOpts{Topic: "ai", AlertedOnly: true})
	if err != nil {
		t.Fatalf("ListAnalyses(alerted): %v", err)
	}
	if len(alerted) != 1 || alerted[0].ID != a.ID {
		t.Errorf("alerted only = %+v", alerted)
	}
}
