package vectorstore

import "time"

// Embedding is the output of an embedding provider: a dense vector plus the
// provenance needed to interpret it. Immutable once produced.
type Embedding struct {
	Vector     []float32
	Model      string
	Dimensions int
}

// Metadata is the JSON-typed side record attached to a vector. Recognized
// keys are documented on the accessor helpers below; unrecognized keys are
// preserved verbatim by every VSP.
type Metadata map[string]any

// SearchResult is what every VSP read path (search, list, get-by-ids,
// chunks-by-file) returns. Score semantics depend on the producing VSP's
// metric; see internal/hnsw and the Sharded-File cosine search.
type SearchResult struct {
	ID        string
	FilePath  string
	StartLine uint32
	Content   string
	Score     float64
	Language  string
}

// CollectionInfo summarizes one named collection within a VSP.
type CollectionInfo struct {
	Name         string
	VectorCount  int
	FileCount    int
	CreatedAt    *time.Time
	ProviderName string
}

// FileInfo aggregates metadata records sharing one file_path.
type FileInfo struct {
	FilePath   string
	ChunkCount int
	Language   string
	Timestamp  *time.Time
}

// resultFromMetadata applies the spec's Result construction rule uniformly:
// every VSP builds a SearchResult from a metadata record through this single
// code path so the accessor defaults never drift between implementations.
func resultFromMetadata(id string, m Metadata, score float64) SearchResult {
	return SearchResult{
		ID:        id,
		FilePath:  metaString(m, "file_path", "unknown"),
		StartLine: metaStartLine(m),
		Content:   metaString(m, "content", ""),
		Score:     score,
		Language:  metaString(m, "language", "unknown"),
	}
}

func metaString(m Metadata, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// metaStartLine implements the start_line / line_number legacy-alias rule:
// start_line wins when present, line_number is the fallback, 0 otherwise.
func metaStartLine(m Metadata) uint32 {
	if v, ok := m["start_line"]; ok {
		if n, ok := toUint32(v); ok {
			return n
		}
	}
	if v, ok := m["line_number"]; ok {
		if n, ok := toUint32(v); ok {
			return n
		}
	}
	return 0
}

func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint32(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint32(n), true
	case uint32:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint32(n), true
	default:
		return 0, false
	}
}

// withID returns a copy of m with the "id" key set to id, as required on
// insertion ("meta with id field added").
func withID(m Metadata, id string) Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out["id"] = id
	return out
}
