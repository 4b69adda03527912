package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OpenAIProvider talks to any OpenAI-compatible embeddings endpoint
// (OpenAI itself, or a self-hosted TEI/vLLM-style shim exposing the same
// wire format) in a single batched request.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxTokens  int
	client     *http.Client
	metrics    *Metrics
}

type openAIRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func defaultOpenAIDimensions(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

// NewOpenAIProvider constructs a provider against baseURL (default
// "https://api.openai.com/v1" when empty).
func NewOpenAIProvider(cfg ProviderConfig, metrics *Metrics) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, newErr(KindConfig, "NewOpenAIProvider", "api_key is required", nil)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = defaultOpenAIDimensions(model)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: dims,
		maxTokens:  cfg.MaxTokens,
		client:     &http.Client{Timeout: timeout},
		metrics:    metrics,
	}, nil
}

func (p *OpenAIProvider) ProviderName() string { return "openai" }
func (p *OpenAIProvider) Model() string        { return p.model }
func (p *OpenAIProvider) Dimensions() int      { return p.dimensions }
func (p *OpenAIProvider) MaxTokens() int       { return p.maxTokens }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	return embedOne(ctx, p, text)
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	start := time.Now()
	if len(texts) == 0 {
		return []Embedding{}, nil
	}
	body, err := json.Marshal(openAIRequest{Input: texts, Model: p.model, EncodingFormat: "float"})
	if err != nil {
		return nil, newErr(KindInternal, "EmbedBatch", "marshaling request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, newErr(KindInternal, "EmbedBatch", "building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		p.metrics.observe(ctx, p.ProviderName(), start, 0, err)
		return nil, newErr(KindEmbedding, "EmbedBatch", "transport failure", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := newErr(KindEmbedding, "EmbedBatch", fmt.Sprintf("openai returned status %d", resp.StatusCode), nil)
		p.metrics.observe(ctx, p.ProviderName(), start, 0, err)
		return nil, err
	}

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		wrapped := newErr(KindEmbedding, "EmbedBatch", "malformed response body", err)
		p.metrics.observe(ctx, p.ProviderName(), start, 0, wrapped)
		return nil, wrapped
	}
	if len(parsed.Data) != len(texts) {
		err := newErr(KindEmbedding, "EmbedBatch",
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(parsed.Data)), nil)
		p.metrics.observe(ctx, p.ProviderName(), start, 0, err)
		return nil, err
	}

	out := make([]Embedding, len(parsed.Data))
	for i, d := range parsed.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = Embedding{Vector: vec, Model: p.model, Dimensions: len(vec)}
	}
	p.metrics.observe(ctx, p.ProviderName(), start, len(texts), nil)
	return out, nil
}
