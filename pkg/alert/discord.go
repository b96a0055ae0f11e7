package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var emotionColors = map[string]int{
	"anger":    0xD7263D,
	"disgust":  0x6A994E,
	"fear":     0x5C4D7D,
	"joy":      0xF4D35E,
	"neutral":  0x9E9E9E,
	"sadness":  0x3A86FF,
	"surprise": 0xFF9F1C,
	"positive": 0x2A9D8F,
	"negative": 0xE76F51,
}

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	var lines []string
	for _, p := range n.TopPosts {
		if p.URL != "" {
			lines = append(lines, fmt.Sprintf("• [%s](%s) [%s]", snippet(p.Text), p.URL, p.Source))
		} else {
			lines = append(lines, fmt.Sprintf("• %s [%s]", snippet(p.Text), p.Source))
		}
	}

	color, ok := emotionColors[n.DominantEmotion]
	if !ok {
		color = 0xFF6600
	}

	embed := map[string]any{
		"title":       n.Title(),
		"description": fmt.Sprintf("**Posts:** %d | **Likes:** %d\n%s\n\n%s", n.PostCount, n.TotalLikes, n.Breakdown(), strings.Join(lines, "\n")),
		"color":       color,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}

	payload := map[string]any{
		"embeds": []map[string]any{embed},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook status %d", resp.StatusCode)
	}

	return nil
}
