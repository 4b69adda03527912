package embeddings

import (
	"context"
	"time"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedProvider is a local, offline embedding provider backed by an
// ONNX runtime session (github.com/anush008/fastembed-go). It has no
// network transport: EmbedBatch runs the model synchronously in-process.
// Supplements the spec's four remote providers per SPEC_FULL.md §4.1.
type FastEmbedProvider struct {
	model      *fastembed.FlagEmbedding
	modelName  string
	dimensions int
	metrics    *Metrics
}

// NewFastEmbedProvider loads (downloading into cacheDir if needed) the
// requested fastembed model.
func NewFastEmbedProvider(cfg ProviderConfig, metrics *Metrics) (*FastEmbedProvider, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = "BAAI/bge-small-en-v1.5"
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = ".cache/fastembed"
	}

	model, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:           fastembed.EmbeddingModel(modelName),
		CacheDir:        cacheDir,
		ShowDownloadProgress: false,
	})
	if err != nil {
		return nil, newErr(KindConfig, "NewFastEmbedProvider", "loading onnx model", err)
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = 384
	}
	return &FastEmbedProvider{model: model, modelName: modelName, dimensions: dims, metrics: metrics}, nil
}

func (p *FastEmbedProvider) ProviderName() string { return "fastembed" }
func (p *FastEmbedProvider) Model() string        { return p.modelName }
func (p *FastEmbedProvider) Dimensions() int      { return p.dimensions }
func (p *FastEmbedProvider) MaxTokens() int       { return 512 }

func (p *FastEmbedProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	return embedOne(ctx, p, text)
}

func (p *FastEmbedProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	start := time.Now()
	if len(texts) == 0 {
		return []Embedding{}, nil
	}
	vectors, err := p.model.Embed(texts, 0)
	if err != nil {
		wrapped := newErr(KindEmbedding, "EmbedBatch", "onnx inference failed", err)
		p.metrics.observe(ctx, p.ProviderName(), start, 0, wrapped)
		return nil, wrapped
	}
	if len(vectors) != len(texts) {
		err := newErr(KindEmbedding, "EmbedBatch", "onnx session returned a different count than requested", nil)
		p.metrics.observe(ctx, p.ProviderName(), start, 0, err)
		return nil, err
	}
	out := make([]Embedding, len(vectors))
	for i, v := range vectors {
		out[i] = Embedding{Vector: v, Model: p.modelName, Dimensions: len(v)}
	}
	p.metrics.observe(ctx, p.ProviderName(), start, len(texts), nil)
	return out, nil
}
