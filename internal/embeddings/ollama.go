package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaProvider talks to an Ollama-compatible /api/embeddings endpoint.
// Unlike OpenAI/VoyageAI, Ollama has no native batch mode: one request is
// issued per input text.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	maxTokens  int
	client     *http.Client
	metrics    *Metrics
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float64 `json:"embedding"`
}

func defaultOllamaDimensions(model string) int {
	switch model {
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	default:
		return 384
	}
}

// NewOllamaProvider constructs a provider against baseURL (default
// "http://localhost:11434"). No API key required.
func NewOllamaProvider(cfg ProviderConfig, metrics *Metrics) (*OllamaProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = defaultOllamaDimensions(model)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		dimensions: dims,
		maxTokens:  cfg.MaxTokens,
		client:     &http.Client{Timeout: timeout},
		metrics:    metrics,
	}, nil
}

func (p *OllamaProvider) ProviderName() string { return "ollama" }
func (p *OllamaProvider) Model() string        { return p.model }
func (p *OllamaProvider) Dimensions() int      { return p.dimensions }
func (p *OllamaProvider) MaxTokens() int       { return p.maxTokens }

func (p *OllamaProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	return embedOne(ctx, p, text)
}

func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	start := time.Now()
	if len(texts) == 0 {
		return []Embedding{}, nil
	}
	out := make([]Embedding, 0, len(texts))
	for _, text := range texts {
		emb, err := p.embedOneRequest(ctx, text)
		if err != nil {
			p.metrics.observe(ctx, p.ProviderName(), start, len(out), err)
			return nil, err
		}
		out = append(out, emb)
	}
	p.metrics.observe(ctx, p.ProviderName(), start, len(out), nil)
	return out, nil
}

func (p *OllamaProvider) embedOneRequest(ctx context.Context, text string) (Embedding, error) {
	body, err := json.Marshal(ollamaRequest{Model: p.model, Prompt: text})
	if err != nil {
		return Embedding{}, newErr(KindInternal, "EmbedBatch", "marshaling request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return Embedding{}, newErr(KindInternal, "EmbedBatch", "building request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Embedding{}, newErr(KindEmbedding, "EmbedBatch", "transport failure", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Embedding{}, newErr(KindEmbedding, "EmbedBatch", fmt.Sprintf("ollama returned status %d", resp.StatusCode), nil)
	}

	var parsed ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Embedding{}, newErr(KindEmbedding, "EmbedBatch", "malformed response body", err)
	}
	if len(parsed.Embedding) == 0 {
		return Embedding{}, newErr(KindEmbedding, "EmbedBatch", "missing embedding field", nil)
	}
	vec := make([]float32, len(parsed.Embedding))
	for i, v := range parsed.Embedding {
		vec[i] = float32(v)
	}
	return Embedding{Vector: vec, Model: p.model, Dimensions: len(vec)}, nil
}
