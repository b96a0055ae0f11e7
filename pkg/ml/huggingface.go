package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultHFBaseURL         = "https://router.huggingface.co/hf-inference/models"
	DefaultEmotionModel      = "j-hartmann/emotion-english-distilroberta-base"
	DefaultSimilarityModel   = "sentence-transformers/all-MiniLM-L6-v2"
	defaultEmotionLabelCount = 7
	maxSimilarityBatch       = 64
)

// HuggingFaceOptions configures the Hugging Face inference client.
type HuggingFaceOptions struct {
	BaseURL         string
	Token           string
	EmotionModel    string
	SimilarityModel string
	TopK            int // labels requested per text (default 7, the full emotion set)
	Timeout         time.Duration
}

// HuggingFace calls text-classification and sentence-similarity models over
// the Hugging Face inference HTTP API. It implements both EmotionClassifier
// and SimilarityScorer.
type HuggingFace struct {
	client *http.Client
	opts   HuggingFaceOptions
}

// NewHuggingFace creates a new Hugging Face inference client.
func NewHuggingFace(opts HuggingFaceOptions) *HuggingFace {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultHFBaseURL
	}
	if opts.EmotionModel == "" {
		opts.EmotionModel = DefaultEmotionModel
	}
	if opts.SimilarityModel == "" {
		opts.SimilarityModel = DefaultSimilarityModel
	}
	if opts.TopK <= 0 {
		opts.TopK = defaultEmotionLabelCount
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &HuggingFace{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Classify returns the full emotion distribution for each text.
func (h *HuggingFace) Classify(ctx context.Context, texts []string) ([][]LabelScore, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload := map[string]any{
		"inputs":     texts,
		"parameters": map[string]any{"top_k": h.opts.TopK},
	}

	var raw json.RawMessage
	if err := h.postJSON(ctx, h.opts.EmotionModel, payload, &raw); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	var nested [][]LabelScore
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) == len(texts) {
		return nested, nil
	}

	// A single input may come back as a flat list of labels.
	var flat []LabelScore
	if len(texts) == 1 {
		if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
			return [][]LabelScore{flat}, nil
		}
	}

	return nil, fmt.Errorf("classify: unexpected response for %d texts: %s", len(texts), preview(raw))
}

// Similarity scores texts against topic with a sentence-similarity model.
func (h *HuggingFace) Similarity(ctx context.Context, topic string, texts []string) ([]float64, error) {
	scores := make([]float64, 0, len(texts))

	for start := 0; start < len(texts); start += maxSimilarityBatch {
		end := min(start+maxSimilarityBatch, len(texts))
		payload := map[string]any{
			"inputs": map[string]any{
				"source_sentence": topic,
				"sentences":       texts[start:end],
			},
		}

		var batch []float64
		if err := h.postJSON(ctx, h.opts.SimilarityModel, payload, &batch); err != nil {
			return nil, fmt.Errorf("similarity: %w", err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("similarity: got %d scores for %d texts", len(batch), end-start)
		}
		scores = append(scores, batch...)
	}

	return scores, nil
}

func (h *HuggingFace) postJSON(ctx context.Context, model string, input, output any) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	endpoint := h.opts.BaseURL + "/" + model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "moodradar/1.0")
	if h.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.opts.Token)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", model, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", model, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s status %d: %s", model, resp.StatusCode, preview(respBody))
	}

	if err := json.Unmarshal(respBody, output); err != nil {
		return fmt.Errorf("decode %s response: %w", model, err)
	}

	slog.Debug("inference request done", "model", model, "elapsed", time.Since(start))
	return nil
}

func preview(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
