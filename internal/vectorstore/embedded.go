package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/vectorcore/internal/hnsw"
	"github.com/fyrsmithlabs/vectorcore/internal/logging"
)

// EmbeddedConfig configures the Embedded-ANN ("edgevec") VSP.
type EmbeddedConfig struct {
	Dimensions         int
	M, M0              int
	EfConstruction     int
	EfSearch           int
	Metric             string // "cosine", "l2_squared"/"squared-l2"/"euclidean", "dot_product"
	UseQuantization    bool
	QuantizationType   string
	ActorChannelBuffer int // default 128, must be >= 64 per the actor discipline
}

func (c EmbeddedConfig) toHNSW() hnsw.Config {
	cfg := hnsw.DefaultConfig(c.Dimensions)
	if c.M > 0 {
		cfg.M = c.M
	}
	if c.M0 > 0 {
		cfg.M0 = c.M0
	}
	if c.EfConstruction > 0 {
		cfg.EfConstruction = c.EfConstruction
	}
	if c.EfSearch > 0 {
		cfg.EfSearch = c.EfSearch
	}
	switch c.Metric {
	case "l2_squared", "squared-l2", "euclidean":
		cfg.Metric = hnsw.SquaredL2
	case "dot_product", "dot-product":
		cfg.Metric = hnsw.DotProduct
	default:
		cfg.Metric = hnsw.Cosine
	}
	return cfg
}

// actorMsg is a single unit of work handed to the owning goroutine. execute
// runs on the actor goroutine against exclusive access to its state; reply
// is buffered 1 so the actor's send never blocks even if the caller has
// stopped waiting (spec §5 cancellation semantics).
type actorMsg struct {
	execute func(s *EmbeddedStore) actorResult
	reply   chan actorResult
}

type actorResult struct {
	ids      []string
	results  []SearchResult
	infos    []CollectionInfo
	files    []FileInfo
	stats    map[string]any
	exists   bool
	err      error
}

// EmbeddedStore is the in-process HNSW vector store. All mutation and
// search is funneled through a single owning goroutine (the actor),
// eliminating locks around the graph and its side maps at the cost of one
// channel round-trip per call.
type EmbeddedStore struct {
	cfg     EmbeddedConfig
	graph   *hnsw.Graph
	metrics *Metrics
	log     *logging.Logger

	// actor-owned state — touched only inside run().
	extToInt     map[string]uint32
	intToExt     map[uint32]string
	collections  map[string]map[string]Metadata // collection -> external_id -> metadata
	collectionAt map[string]time.Time

	ch     chan actorMsg
	closed atomic.Bool
}

// NewEmbeddedStore constructs the actor goroutine and returns a handle.
func NewEmbeddedStore(cfg EmbeddedConfig, metrics *Metrics, log *logging.Logger) (*EmbeddedStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, newErr(KindConfig, "NewEmbeddedStore", "dimensions must be positive", nil)
	}
	buf := cfg.ActorChannelBuffer
	if buf < 64 {
		buf = 128
	}
	s := &EmbeddedStore{
		cfg:          cfg,
		graph:        hnsw.New(cfg.toHNSW()),
		metrics:      metrics,
		log:          log,
		extToInt:     make(map[string]uint32),
		intToExt:     make(map[uint32]string),
		collections:  make(map[string]map[string]Metadata),
		collectionAt: make(map[string]time.Time),
		ch:           make(chan actorMsg, buf),
	}
	go s.run()
	return s, nil
}

func (s *EmbeddedStore) run() {
	for msg := range s.ch {
		res := msg.execute(s)
		msg.reply <- res
	}
}

// send dispatches fn to the actor and waits for its reply, translating a
// closed channel into ErrActorClosed rather than hanging or panicking.
func (s *EmbeddedStore) send(ctx context.Context, fn func(s *EmbeddedStore) actorResult) (res actorResult, err error) {
	if s.closed.Load() {
		return actorResult{}, ErrActorClosed
	}
	reply := make(chan actorResult, 1)
	defer func() {
		if r := recover(); r != nil {
			err = ErrActorClosed
		}
	}()
	select {
	case s.ch <- actorMsg{execute: fn, reply: reply}:
	case <-ctx.Done():
		return actorResult{}, newErr(KindInternal, "send", "context canceled waiting for actor", ctx.Err())
	}
	select {
	case res = <-reply:
		return res, res.err
	case <-ctx.Done():
		// The actor still processes the message; we simply stop waiting on
		// the reply, matching the spec's cancellation-is-safe note.
		return actorResult{}, newErr(KindInternal, "reply", "context canceled waiting for reply", ctx.Err())
	}
}

// Close stops the actor goroutine. Not part of the spec's operation set but
// needed for clean shutdown in tests and embedding applications.
func (s *EmbeddedStore) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}

func (s *EmbeddedStore) ProviderName() string { return "edgevec" }

func (s *EmbeddedStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	start := time.Now()
	_, err := s.send(ctx, func(s *EmbeddedStore) actorResult {
		if dimensions > 0 && dimensions != s.cfg.Dimensions {
			return actorResult{err: newErr(KindConfig, "CreateCollection",
				fmt.Sprintf("collection dimensions %d do not match store dimensions %d", dimensions, s.cfg.Dimensions), nil)}
		}
		if _, ok := s.collections[name]; !ok {
			s.collections[name] = make(map[string]Metadata)
			now := time.Now()
			s.collectionAt[name] = now
		}
		return actorResult{}
	})
	s.metrics.observe(s.ProviderName(), "CreateCollection", start, err)
	warnOnError(ctx, s.log, s.ProviderName(), "CreateCollection", err)
	return err
}

func (s *EmbeddedStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	res, err := s.send(ctx, func(s *EmbeddedStore) actorResult {
		_, ok := s.collections[name]
		return actorResult{exists: ok}
	})
	return res.exists, err
}

func (s *EmbeddedStore) DeleteCollection(ctx context.Context, name string) error {
	start := time.Now()
	_, err := s.send(ctx, func(s *EmbeddedStore) actorResult {
		meta, ok := s.collections[name]
		if !ok {
			return actorResult{}
		}
		for extID := range meta {
			if intID, ok := s.extToInt[extID]; ok {
				s.graph.Delete(intID)
				delete(s.intToExt, intID)
				delete(s.extToInt, extID)
			}
		}
		delete(s.collections, name)
		delete(s.collectionAt, name)
		return actorResult{}
	})
	s.metrics.observe(s.ProviderName(), "DeleteCollection", start, err)
	warnOnError(ctx, s.log, s.ProviderName(), "DeleteCollection", err)
	return err
}

func (s *EmbeddedStore) InsertVectors(ctx context.Context, collection string, vectors []Embedding, metadata []Metadata) ([]string, error) {
	start := time.Now()
	if len(vectors) != len(metadata) {
		return nil, newErr(KindConfig, "InsertVectors", "vectors and metadata length mismatch", nil)
	}
	res, err := s.send(ctx, func(s *EmbeddedStore) actorResult {
		if _, ok := s.collections[collection]; !ok {
			s.collections[collection] = make(map[string]Metadata)
			s.collectionAt[collection] = time.Now()
		}
		ids := make([]string, 0, len(vectors))
		for i, v := range vectors {
			if len(v.Vector) != s.cfg.Dimensions {
				return actorResult{err: newErr(KindConfig, "InsertVectors",
					fmt.Sprintf("vector %d has dimension %d, expected %d", i, len(v.Vector), s.cfg.Dimensions), nil)}
			}
			extID := fmt.Sprintf("%s_%s", collection, uuid.NewString())
			intID := s.graph.Insert(v.Vector)
			s.extToInt[extID] = intID
			s.intToExt[intID] = extID
			s.collections[collection][extID] = withID(metadata[i], extID)
			ids = append(ids, extID)
		}
		return actorResult{ids: ids}
	})
	if err == nil {
		s.metrics.addVectors(s.ProviderName(), collection, len(res.ids))
	}
	s.metrics.observe(s.ProviderName(), "InsertVectors", start, err)
	warnOnError(ctx, s.log, s.ProviderName(), "InsertVectors", err)
	if err != nil {
		return nil, err
	}
	return res.ids, nil
}

func (s *EmbeddedStore) SearchSimilar(ctx context.Context, collection string, query []float32, limit int, filter map[string]any) ([]SearchResult, error) {
	start := time.Now()
	res, err := s.send(ctx, func(s *EmbeddedStore) actorResult {
		meta, ok := s.collections[collection]
		if !ok || len(meta) == 0 {
			return actorResult{results: []SearchResult{}}
		}
		neighbors := s.graph.Search(query, limit*4+limit) // over-fetch since the graph is shared across collections
		results := make([]SearchResult, 0, limit)
		for _, n := range neighbors {
			extID, ok := s.intToExt[n.ID]
			if !ok {
				continue
			}
			m, ok := meta[extID]
			if !ok {
				continue // belongs to a different collection
			}
			results = append(results, resultFromMetadata(extID, m, n.Score))
			if len(results) >= limit {
				break
			}
		}
		return actorResult{results: results}
	})
	s.metrics.observe(s.ProviderName(), "SearchSimilar", start, err)
	warnOnError(ctx, s.log, s.ProviderName(), "SearchSimilar", err)
	return res.results, err
}

func (s *EmbeddedStore) DeleteVectors(ctx context.Context, collection string, ids []string) error {
	start := time.Now()
	_, err := s.send(ctx, func(s *EmbeddedStore) actorResult {
		meta, ok := s.collections[collection]
		if !ok {
			return actorResult{}
		}
		for _, id := range ids {
			if _, ok := meta[id]; !ok {
				continue
			}
			if intID, ok := s.extToInt[id]; ok {
				s.graph.Delete(intID)
				delete(s.intToExt, intID)
				delete(s.extToInt, id)
			}
			delete(meta, id)
		}
		return actorResult{}
	})
	s.metrics.observe(s.ProviderName(), "DeleteVectors", start, err)
	warnOnError(ctx, s.log, s.ProviderName(), "DeleteVectors", err)
	return err
}

func (s *EmbeddedStore) GetVectorsByIDs(ctx context.Context, collection string, ids []string) ([]SearchResult, error) {
	res, err := s.send(ctx, func(s *EmbeddedStore) actorResult {
		meta, ok := s.collections[collection]
		if !ok {
			return actorResult{results: []SearchResult{}}
		}
		out := make([]SearchResult, 0, len(ids))
		for _, id := range ids {
			m, ok := meta[id]
			if !ok {
				continue
			}
			out = append(out, resultFromMetadata(id, m, 1.0))
		}
		return actorResult{results: out}
	})
	return res.results, err
}

func (s *EmbeddedStore) ListVectors(ctx context.Context, collection string, limit int) ([]SearchResult, error) {
	res, err := s.send(ctx, func(s *EmbeddedStore) actorResult {
		meta, ok := s.collections[collection]
		if !ok {
			return actorResult{results: []SearchResult{}}
		}
		out := make([]SearchResult, 0, limit)
		for id, m := range meta {
			out = append(out, resultFromMetadata(id, m, 1.0))
			if len(out) >= limit {
				break
			}
		}
		return actorResult{results: out}
	})
	return res.results, err
}

func (s *EmbeddedStore) GetStats(ctx context.Context, collection string) (map[string]any, error) {
	res, err := s.send(ctx, func(s *EmbeddedStore) actorResult {
		meta, ok := s.collections[collection]
		if !ok {
			return actorResult{err: newErr(KindNotFound, "GetStats", "collection not found: "+collection, nil)}
		}
		return actorResult{stats: map[string]any{
			"collection":            collection,
			"vector_count":          len(meta),
			"total_indexed_vectors": s.graph.TotalLen(),
			"dimensions":            s.cfg.Dimensions,
			"provider":              s.ProviderName(),
		}}
	})
	return res.stats, err
}

func (s *EmbeddedStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	res, err := s.send(ctx, func(s *EmbeddedStore) actorResult {
		out := make([]CollectionInfo, 0, len(s.collections))
		for name, meta := range s.collections {
			fileCount := distinctFileCount(meta)
			createdAt := s.collectionAt[name]
			out = append(out, CollectionInfo{
				Name:         name,
				VectorCount:  len(meta),
				FileCount:    fileCount,
				CreatedAt:    &createdAt,
				ProviderName: s.ProviderName(),
			})
		}
		return actorResult{infos: out}
	})
	return res.infos, err
}

func (s *EmbeddedStore) ListFilePaths(ctx context.Context, collection string, limit int) ([]FileInfo, error) {
	res, err := s.send(ctx, func(s *EmbeddedStore) actorResult {
		meta, ok := s.collections[collection]
		if !ok {
			return actorResult{files: []FileInfo{}}
		}
		return actorResult{files: aggregateFileInfo(meta, limit)}
	})
	return res.files, err
}

func (s *EmbeddedStore) GetChunksByFile(ctx context.Context, collection, filePath string) ([]SearchResult, error) {
	res, err := s.send(ctx, func(s *EmbeddedStore) actorResult {
		meta, ok := s.collections[collection]
		if !ok {
			return actorResult{results: []SearchResult{}}
		}
		out := make([]SearchResult, 0)
		for id, m := range meta {
			if metaString(m, "file_path", "unknown") != filePath {
				continue
			}
			out = append(out, resultFromMetadata(id, m, 1.0))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].StartLine < out[j].StartLine })
		return actorResult{results: out}
	})
	return res.results, err
}

// Flush is a no-op for the in-memory store; resolved Open Question in
// SPEC_FULL.md.
func (s *EmbeddedStore) Flush(ctx context.Context, collection string) error { return nil }

func distinctFileCount(meta map[string]Metadata) int {
	seen := make(map[string]struct{})
	for _, m := range meta {
		seen[metaString(m, "file_path", "unknown")] = struct{}{}
	}
	return len(seen)
}

func aggregateFileInfo(meta map[string]Metadata, limit int) []FileInfo {
	type agg struct {
		chunkCount int
		language   string
	}
	byPath := make(map[string]*agg)
	order := make([]string, 0)
	for _, m := range meta {
		path := metaString(m, "file_path", "unknown")
		a, ok := byPath[path]
		if !ok {
			a = &agg{language: metaString(m, "language", "unknown")}
			byPath[path] = a
			order = append(order, path)
		}
		a.chunkCount++
	}
	out := make([]FileInfo, 0, len(order))
	for _, path := range order {
		a := byPath[path]
		out = append(out, FileInfo{FilePath: path, ChunkCount: a.chunkCount, Language: a.language})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
