package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// VoyageAIProvider talks to the VoyageAI embeddings API, which like OpenAI
// embeds an entire batch in a single request.
type VoyageAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxTokens  int
	client     *http.Client
	metrics    *Metrics
}

type voyageRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewVoyageAIProvider constructs a provider against baseURL (default
// "https://api.voyageai.com/v1").
func NewVoyageAIProvider(cfg ProviderConfig, metrics *Metrics) (*VoyageAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, newErr(KindConfig, "NewVoyageAIProvider", "api_key is required", nil)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.voyageai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "voyage-code-2"
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = 1024
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VoyageAIProvider{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: dims,
		maxTokens:  cfg.MaxTokens,
		client:     &http.Client{Timeout: timeout},
		metrics:    metrics,
	}, nil
}

func (p *VoyageAIProvider) ProviderName() string { return "voyageai" }
func (p *VoyageAIProvider) Model() string        { return p.model }
func (p *VoyageAIProvider) Dimensions() int      { return p.dimensions }
func (p *VoyageAIProvider) MaxTokens() int       { return p.maxTokens }

func (p *VoyageAIProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	return embedOne(ctx, p, text)
}

func (p *VoyageAIProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	start := time.Now()
	if len(texts) == 0 {
		return []Embedding{}, nil
	}
	body, err := json.Marshal(voyageRequest{Input: texts, Model: p.model})
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
		err := newErr(KindEmbedding, "EmbedBatch", fmt.Sprintf("voyageai returned status %d", resp.StatusCode), nil)
		p.metrics.observe(ctx, p.ProviderName(), start, 0, err)
		return nil, err
	}

	var parsed voyageResponse
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
