// Package embeddings implements the provider-abstracted embedding layer:
// a uniform batch interface over several remote embedding services plus a
// local ONNX-backed provider and a mock/null provider for tests.
package embeddings

import "context"

// Embedding is the output of a Provider call: a dense vector plus the
// provenance needed to interpret it.
type Embedding struct {
	Vector     []float32
	Model      string
	Dimensions int
}

// Provider is the capability set every embedding provider implements.
type Provider interface {
	// EmbedBatch embeds texts in one logical call. An empty input returns
	// an empty output without contacting any remote service.
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)

	// Embed embeds a single string; implemented once on top of EmbedBatch
	// by embedOne below so every provider shares identical single-embed
	// semantics.
	Embed(ctx context.Context, text string) (Embedding, error)

	Dimensions() int
	ProviderName() string
	Model() string
	MaxTokens() int
}

// embedOne is the shared single-embed helper: Embed(text) ==
// EmbedBatch([text])[0], failing with an Embedding error if the provider
// returned zero results.
func embedOne(ctx context.Context, p Provider, text string) (Embedding, error) {
	results, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	if len(results) == 0 {
		return Embedding{}, newErr(KindEmbedding, "Embed", "no embedding returned", nil)
	}
	return results[0], nil
}
