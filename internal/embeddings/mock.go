package embeddings

import "context"

// MockProvider (config name "mock"/"null") performs no transport and
// returns length-1 vectors of a constant value. Used by tests and by
// callers that want a deterministic, zero-dependency embedding source.
type MockProvider struct {
	value float32
}

// NewMockProvider constructs a mock provider. value defaults to 1.0.
func NewMockProvider(cfg ProviderConfig) *MockProvider {
	value := float32(1.0)
	if cfg.MockValue != 0 {
		value = cfg.MockValue
	}
	return &MockProvider{value: value}
}

func (p *MockProvider) ProviderName() string { return "mock" }
func (p *MockProvider) Model() string        { return "mock-v1" }
func (p *MockProvider) Dimensions() int      { return 1 }
func (p *MockProvider) MaxTokens() int       { return 0 }

func (p *MockProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	return embedOne(ctx, p, text)
}

func (p *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if len(texts) == 0 {
		return []Embedding{}, nil
	}
	out := make([]Embedding, len(texts))
	for i := range texts {
		out[i] = Embedding{Vector: []float32{p.value}, Model: p.Model(), Dimensions: 1}
	}
	return out, nil
}
