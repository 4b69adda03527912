package config

import "time"

// Config is the process-wide configuration tree loaded by Load. The
// ambient sections (Logging, Telemetry, Secrets) are declared here as plain
// structs rather than importing internal/logging etc. directly, since those
// packages import internal/config for Duration/Secret — the composition
// root (cmd/) assembles the concrete typed configs from these sections
// instead of this package depending back on them.
type Config struct {
	Embeddings  map[string]EmbeddingConfig `koanf:"embeddings"`
	VectorStore VectorStoreConfig          `koanf:"vectorstore"`
	Logging     RawSection                 `koanf:"logging"`
	Telemetry   RawSection                 `koanf:"telemetry"`
	Secrets     RawSection                 `koanf:"secrets"`
}

// RawSection is decoded generically and handed to the owning package's own
// koanf sub-unmarshal so this package never needs to know that package's
// field shapes.
type RawSection map[string]any

// EmbeddingConfig is one named entry under the "embeddings" map — the
// provider factory's ProviderConfig, plus the name it is registered under.
type EmbeddingConfig struct {
	Provider   string   `koanf:"provider"`
	Model      string   `koanf:"model"`
	APIKey     Secret   `koanf:"api_key"`
	BaseURL    string   `koanf:"base_url"`
	Dimensions int      `koanf:"dimensions"`
	MaxTokens  int      `koanf:"max_tokens"`
	Timeout    Duration `koanf:"timeout"`
	CacheDir   string   `koanf:"cache_dir"`
	MockValue  float32  `koanf:"mock_value"`
}

// VectorStoreConfig mirrors vectorstore.StoreConfig's shape so it can be
// decoded directly off koanf before being translated at the composition
// root.
type VectorStoreConfig struct {
	Provider   string `koanf:"provider"`
	Address    string `koanf:"address"`
	Token      Secret `koanf:"token"`
	Dimensions int    `koanf:"dimensions"`

	Edgevec    EdgevecConfig     `koanf:"edgevec"`
	Filesystem FilesystemConfig  `koanf:"filesystem"`
	Qdrant     QdrantConfig      `koanf:"qdrant"`
	Encrypting *EncryptingConfig `koanf:"encrypting"`
}

type EdgevecConfig struct {
	Dimensions         int    `koanf:"dimensions"`
	M                  int    `koanf:"m"`
	M0                 int    `koanf:"m0"`
	EfConstruction     int    `koanf:"ef_construction"`
	EfSearch           int    `koanf:"ef_search"`
	Metric             string `koanf:"metric"`
	UseQuantization    bool   `koanf:"use_quantization"`
	QuantizationType   string `koanf:"quantization_type"`
	ActorChannelBuffer int    `koanf:"actor_channel_buffer"`
}

type FilesystemConfig struct {
	BasePath           string `koanf:"base_path"`
	Dimensions         int    `koanf:"dimensions"`
	MaxVectorsPerShard int    `koanf:"max_vectors_per_shard"`
}

type QdrantConfig struct {
	Address         string   `koanf:"address"`
	APIKey          Secret   `koanf:"api_key"`
	Dimensions      int      `koanf:"dimensions"`
	Distance        string   `koanf:"distance"`
	MaxRetries      int      `koanf:"max_retries"`
	RetryBaseDelay  Duration `koanf:"retry_base_delay"`
	BreakerTrip     int      `koanf:"breaker_trip"`
	BreakerCooldown Duration `koanf:"breaker_cooldown"`
}

type EncryptingConfig struct {
	KeyPath         string `koanf:"key_path"`
	KeyRotationDays int    `koanf:"key_rotation_days"`
}

// Default returns the configuration used when no file or environment
// override is present: a single mock embedding provider and an in-process
// edgevec store, so the binary runs with zero external dependencies out of
// the box.
func Default() *Config {
	return &Config{
		Embeddings: map[string]EmbeddingConfig{
			"default": {Provider: "mock", Timeout: Duration(30 * time.Second)},
		},
		VectorStore: VectorStoreConfig{
			Provider: "edgevec",
			Edgevec: EdgevecConfig{
				Dimensions:     1536,
				M:              16,
				M0:             32,
				EfConstruction: 200,
				EfSearch:       64,
				Metric:         "cosine",
			},
		},
	}
}
