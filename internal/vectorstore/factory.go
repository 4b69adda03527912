package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/vectorcore/internal/logging"
)

// StoreConfig is the declarative record the factory constructs a Store
// from. Provider-specific nested blocks are all present; only the block
// matching Provider (or the wrapped inner provider, when Encrypting is set)
// is consulted.
type StoreConfig struct {
	Provider   string // "in-memory", "edgevec", "filesystem", "qdrant", "milvus"
	Address    string
	Token      string
	Dimensions int

	Edgevec    EmbeddedConfig
	Filesystem ShardedFileConfig
	Qdrant     QdrantConfig

	// Encrypting, when non-nil, wraps the provider built from the fields
	// above in an Encrypting-Wrap VSP.
	Encrypting *EncryptingConfig
}

// NewStore dispatches cfg.Provider to a concrete Store constructor. Unknown
// providers return a Config error naming the offending string, per §4.3.
func NewStore(cfg StoreConfig, metrics *Metrics, log *logging.Logger) (Store, error) {
	inner, err := newInnerStore(cfg, metrics, log)
	if err != nil {
		return nil, err
	}
	if cfg.Encrypting == nil {
		return inner, nil
	}
	return NewEncryptingStore(inner, *cfg.Encrypting, log)
}

func newInnerStore(cfg StoreConfig, metrics *Metrics, log *logging.Logger) (Store, error) {
	switch cfg.Provider {
	case "in-memory", "edgevec", "":
		ec := cfg.Edgevec
		if ec.Dimensions == 0 {
			ec.Dimensions = defaultInt(cfg.Dimensions, 1536)
		}
		return NewEmbeddedStore(ec, metrics, log)

	case "filesystem":
		fc := cfg.Filesystem
		if fc.BasePath == "" {
			fc.BasePath = cfg.Address
		}
		if fc.Dimensions == 0 {
			fc.Dimensions = defaultInt(cfg.Dimensions, 1536)
		}
		return NewShardedFileStore(fc, metrics, log)

	case "qdrant":
		qc := cfg.Qdrant
		if qc.Address == "" {
			qc.Address = cfg.Address
		}
		if qc.APIKey == "" {
			qc.APIKey = cfg.Token
		}
		if qc.Dimensions == 0 {
			qc.Dimensions = defaultInt(cfg.Dimensions, 1536)
		}
		return NewQdrantStore(qc, metrics, log)

	case "milvus":
		return nil, newErr(KindConfig, "NewStore", "milvus: no driver available in this build", nil)

	default:
		return nil, newErr(KindConfig, "NewStore", fmt.Sprintf("unknown vector store provider %q", cfg.Provider), nil)
	}
}

func defaultInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
