// Package alert delivers mood notifications to chat and webhook destinations.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/elonfeng/moodradar/pkg/mood"
	"github.com/elonfeng/moodradar/pkg/source"
)

const maxTopPosts = 5

// Notification describes a topic whose mood is dominated by one emotion.
type Notification struct {
	Topic           string             `json:"topic"`
	DominantEmotion string             `json:"dominant_emotion"`
	Share           float64            `json:"share"`
	EmotionSummary  map[string]float64 `json:"emotion_summary"`
	PostCount       int                `json:"post_count"`
	TotalLikes      int                `json:"total_likes"`
	TopPosts        []source.Post      `json:"top_posts"`
}

// NewNotification summarizes a topic result, keeping its five best-ranked posts.
func NewNotification(res *mood.TopicResult) *Notification {
	emotion, share := mood.DominantEmotion(res.EmotionSummary)
	top := res.Results.AllPosts
	if len(top) > maxTopPosts {
		top = top[:maxTopPosts]
	}
	return &Notification{
		Topic:           res.Topic,
		DominantEmotion: emotion,
		Share:           share,
		EmotionSummary:  res.EmotionSummary,
		PostCount:       res.TotalPostsAnalyzed,
		TotalLikes:      res.ReactionStats.TotalLikes,
		TopPosts:        top,
	}
}

// Title is the one-line headline used by chat notifiers.
func (n *Notification) Title() string {
	return fmt.Sprintf("%s: %s %.0f%%", n.Topic, n.DominantEmotion, n.Share*100)
}

// Breakdown lists emotion shares, largest first.
func (n *Notification) Breakdown() string {
	labels := make([]string, 0, len(n.EmotionSummary))
	for label := range n.EmotionSummary {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		a, b := n.EmotionSummary[labels[i]], n.EmotionSummary[labels[j]]
		if a != b {
			return a > b
		}
		return labels[i] < labels[j]
	})

	out := ""
	for i, label := range labels {
		if i > 0 {
			out += " · "
		}
		out += fmt.Sprintf("%s %.0f%%", label, n.EmotionSummary[label]*100)
	}
	return out
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func snippet(text string) string {
	return source.Truncate(text, 120)
}
