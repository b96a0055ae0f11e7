package ml

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultEmbeddingModel = "text-embedding-3-small"

// OpenAIEmbeddings scores similarity by embedding the topic and texts in one
// request and comparing them with Cosine.
type OpenAIEmbeddings struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbeddings creates a new embeddings-backed SimilarityScorer.
// baseURL may be empty to use the public API.
func NewOpenAIEmbeddings(apiKey, model, baseURL string) *OpenAIEmbeddings {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEmbeddings{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Similarity embeds topic followed by texts and returns cosine similarities.
func (o *OpenAIEmbeddings) Similarity(ctx context.Context, topic string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, 0, len(texts)+1)
	inputs = append(inputs, topic)
	inputs = append(inputs, texts...)

	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.F[openai.EmbeddingNewParamsInputUnion](openai.EmbeddingNewParamsInputArrayOfStrings(inputs)),
		Model: openai.F(openai.EmbeddingModel(o.model)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(inputs))
	}

	vectors := make([][]float64, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	scores := make([]float64, len(texts))
	for i := range texts {
		scores[i] = Cosine(vectors[0], vectors[i+1])
	}
	return scores, nil
}
