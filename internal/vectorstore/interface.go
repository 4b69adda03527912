// Package vectorstore implements the provider-abstracted vector store: the
// shared Store contract and its three concrete providers (Embedded-ANN,
// Sharded-File, Encrypting-Wrap), plus an optional remote Qdrant adapter.
package vectorstore

import "context"

// Store is the capability set every vector store provider implements.
// Composition, not inheritance, is how providers layer on top of one
// another — Encrypting-Wrap holds an inner Store by reference and
// implements this same interface.
type Store interface {
	CreateCollection(ctx context.Context, name string, dimensions int) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	DeleteCollection(ctx context.Context, name string) error

	// InsertVectors requires len(vectors) == len(metadata). On success the
	// returned ids have the same length and order as the inputs. On partial
	// failure, previously inserted records are retained (no rollback) and
	// the error reports the first failure's cause.
	InsertVectors(ctx context.Context, collection string, vectors []Embedding, metadata []Metadata) ([]string, error)

	// SearchSimilar returns up to limit results ordered best-first per the
	// provider's metric. filter is reserved and currently ignored by every
	// implementation.
	SearchSimilar(ctx context.Context, collection string, query []float32, limit int, filter map[string]any) ([]SearchResult, error)

	// DeleteVectors silently skips ids that do not exist.
	DeleteVectors(ctx context.Context, collection string, ids []string) error

	// GetVectorsByIDs preserves input order and omits missing ids; Score is
	// always 1.0.
	GetVectorsByIDs(ctx context.Context, collection string, ids []string) ([]SearchResult, error)

	// ListVectors returns an unordered sample of up to limit entries; Score
	// is always 1.0.
	ListVectors(ctx context.Context, collection string, limit int) ([]SearchResult, error)

	GetStats(ctx context.Context, collection string) (map[string]any, error)
	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	ListFilePaths(ctx context.Context, collection string, limit int) ([]FileInfo, error)

	// GetChunksByFile returns every record whose file_path equals filePath,
	// sorted by StartLine ascending.
	GetChunksByFile(ctx context.Context, collection, filePath string) ([]SearchResult, error)

	// Flush persists pending state; in-memory providers may no-op.
	Flush(ctx context.Context, collection string) error

	ProviderName() string
}
