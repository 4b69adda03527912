package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// GeminiProvider talks to the Gemini embedContent API, which embeds one
// text per request and addresses models as "models/{name}" on the wire
// while accepting a bare name in configuration.
type GeminiProvider struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxTokens  int
	client     *http.Client
	metrics    *Metrics
}

type geminiContent struct {
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

type geminiRequest struct {
	Content geminiContent `json:"content"`
}

type geminiResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// NewGeminiProvider constructs a provider against baseURL (default
// "https://generativelanguage.googleapis.com").
func NewGeminiProvider(cfg ProviderConfig, metrics *Metrics) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, newErr(KindConfig, "NewGeminiProvider", "api_key is required", nil)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	model := cfg.Model
	if model == "" {
		model = "embedding-001"
	}
	model = strings.TrimPrefix(model, "models/")
	dims := cfg.Dimensions
	if dims == 0 {
		dims = 768
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiProvider{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: dims,
		maxTokens:  cfg.MaxTokens,
		client:     &http.Client{Timeout: timeout},
		metrics:    metrics,
	}, nil
}

func (p *GeminiProvider) ProviderName() string { return "gemini" }
func (p *GeminiProvider) Model() string        { return p.model }
func (p *GeminiProvider) Dimensions() int      { return p.dimensions }
func (p *GeminiProvider) MaxTokens() int       { return p.maxTokens }

func (p *GeminiProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	return embedOne(ctx, p, text)
}

func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
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

func (p *GeminiProvider) embedOneRequest(ctx context.Context, text string) (Embedding, error) {
	reqBody := geminiRequest{}
	reqBody.Content.Parts = []struct {
		Text string `json:"text"`
	}{{Text: text}}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Embedding{}, newErr(KindInternal, "EmbedBatch", "marshaling request", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
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
		return Embedding{}, newErr(KindEmbedding, "EmbedBatch", fmt.Sprintf("gemini returned status %d", resp.StatusCode), nil)
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Embedding{}, newErr(KindEmbedding, "EmbedBatch", "malformed response body", err)
	}
	if len(parsed.Embedding.Values) == 0 {
		return Embedding{}, newErr(KindEmbedding, "EmbedBatch", "missing embedding field", nil)
	}
	vec := make([]float32, len(parsed.Embedding.Values))
	for i, v := range parsed.Embedding.Values {
		vec[i] = float32(v)
	}
	return Embedding{Vector: vec, Model: p.model, Dimensions: len(vec)}, nil
}
