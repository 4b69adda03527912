package embeddings

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ProviderConfig is the declarative record the factory constructs a
// Provider from.
type ProviderConfig struct {
	Provider   string // "openai", "ollama", "voyageai", "gemini", "fastembed", "mock"
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	MaxTokens  int
	Timeout    time.Duration

	CacheDir  string  // fastembed only
	MockValue float32 // mock only
}

// NewProvider dispatches cfg.Provider to a concrete Provider constructor.
// Unknown providers return a Config error naming the offending string.
func NewProvider(cfg ProviderConfig, metrics *Metrics) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg, metrics)
	case "ollama":
		return NewOllamaProvider(cfg, metrics)
	case "voyageai":
		return NewVoyageAIProvider(cfg, metrics)
	case "gemini":
		return NewGeminiProvider(cfg, metrics)
	case "fastembed":
		return NewFastEmbedProvider(cfg, metrics)
	case "mock", "null", "":
		return NewMockProvider(cfg), nil
	default:
		return nil, newErr(KindConfig, "NewProvider", fmt.Sprintf("unknown embedding provider %q", cfg.Provider), nil)
	}
}

// NewMetricsFromMeterProvider is a small convenience wrapper so callers
// need only hand in an otel MeterProvider, matching the construction style
// the teacher repo uses elsewhere for its metrics setup.
func NewMetricsFromMeterProvider(mp metric.MeterProvider) (*Metrics, error) {
	return NewMetrics(mp.Meter("vectorcore/embeddings"))
}
