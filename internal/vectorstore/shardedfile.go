package vectorstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/vectorcore/internal/logging"
)

// ShardedFileConfig configures the Sharded-File VSP.
type ShardedFileConfig struct {
	BasePath            string
	Dimensions          int
	MaxVectorsPerShard  int
}

// IndexEntry locates one record within a collection's shards.
type IndexEntry struct {
	ID       string   `json:"id"`
	ShardID  int      `json:"shard_id"`
	Offset   int64    `json:"offset"`
	Metadata Metadata `json:"metadata"`
}

// ShardMetadata is the sidecar JSON for one shard_{N}.dat file.
type ShardMetadata struct {
	ShardID      int       `json:"shard_id"`
	VectorCount  int       `json:"vector_count"`
	VectorsOffset int64    `json:"vectors_offset"`
	VectorsSize  int64     `json:"vectors_size"`
	CreatedAt    time.Time `json:"created_at"`
}

type collectionState struct {
	mu     sync.RWMutex
	index  map[string]*IndexEntry // external_id -> entry
	shards map[int]*ShardMetadata
}

// ShardedFileStore is the on-disk VSP for large collections: append-only
// binary shards with brute-force cosine search. See SPEC_FULL.md §4.2.b for
// the exact record format and shard selection rule.
type ShardedFileStore struct {
	cfg     ShardedFileConfig
	metrics *Metrics
	log     *logging.Logger

	mu          sync.RWMutex // guards `states` map membership only
	states      map[string]*collectionState
	nextShardID map[string]int
}

// NewShardedFileStore constructs the store rooted at cfg.BasePath, which is
// created if absent.
func NewShardedFileStore(cfg ShardedFileConfig, metrics *Metrics, log *logging.Logger) (*ShardedFileStore, error) {
	if cfg.BasePath == "" {
		return nil, newErr(KindConfig, "NewShardedFileStore", "base_path is required", nil)
	}
	if cfg.Dimensions <= 0 {
		return nil, newErr(KindConfig, "NewShardedFileStore", "dimensions must be positive", nil)
	}
	if cfg.MaxVectorsPerShard <= 0 {
		cfg.MaxVectorsPerShard = 10000
	}
	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, newErr(KindIO, "NewShardedFileStore", "creating base_path", err)
	}
	return &ShardedFileStore{
		cfg:         cfg,
		metrics:     metrics,
		log:         log,
		states:      make(map[string]*collectionState),
		nextShardID: make(map[string]int),
	}, nil
}

func (s *ShardedFileStore) ProviderName() string { return "filesystem" }

func (s *ShardedFileStore) indexPath(collection string) string {
	return filepath.Join(s.cfg.BasePath, collection+"_index.json")
}

func (s *ShardedFileStore) shardsDir(collection string) string {
	return filepath.Join(s.cfg.BasePath, collection+"_shards")
}

func (s *ShardedFileStore) shardDataPath(collection string, shardID int) string {
	return filepath.Join(s.shardsDir(collection), fmt.Sprintf("shard_%d.dat", shardID))
}

func (s *ShardedFileStore) shardMetaPath(collection string, shardID int) string {
	return filepath.Join(s.shardsDir(collection), fmt.Sprintf("shard_%d.meta", shardID))
}

// loadCollectionState lazily loads (or creates empty) in-memory state for a
// collection. A missing index file is not an error — it yields empty state,
// per §7's lazy-load rule.
func (s *ShardedFileStore) loadCollectionState(collection string) (*collectionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[collection]; ok {
		return st, nil
	}
	st := &collectionState{index: make(map[string]*IndexEntry), shards: make(map[int]*ShardMetadata)}

	data, err := os.ReadFile(s.indexPath(collection))
	if err != nil {
		if os.IsNotExist(err) {
			s.states[collection] = st
			return st, nil
		}
		return nil, newErr(KindIO, "loadCollectionState", "reading index file", err)
	}
	if err := json.Unmarshal(data, &st.index); err != nil {
		return nil, newErr(KindIO, "loadCollectionState", "parsing index file", err)
	}
	for _, entry := range st.index {
		if _, ok := st.shards[entry.ShardID]; ok {
			continue
		}
		meta, err := s.readShardMeta(collection, entry.ShardID)
		if err == nil {
			st.shards[entry.ShardID] = meta
		}
	}
	s.states[collection] = st
	return st, nil
}

func (s *ShardedFileStore) readShardMeta(collection string, shardID int) (*ShardMetadata, error) {
	data, err := os.ReadFile(s.shardMetaPath(collection, shardID))
	if err != nil {
		return nil, err
	}
	var m ShardMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// saveCollectionState persists the in-memory index and shard metadata to
// their JSON sidecars.
func (s *ShardedFileStore) saveCollectionState(collection string, st *collectionState) error {
	if err := os.MkdirAll(s.shardsDir(collection), 0o755); err != nil {
		return newErr(KindIO, "saveCollectionState", "creating shards dir", err)
	}
	data, err := json.MarshalIndent(st.index, "", "  ")
	if err != nil {
		return newErr(KindInternal, "saveCollectionState", "marshaling index", err)
	}
	if err := os.WriteFile(s.indexPath(collection), data, 0o644); err != nil {
		return newErr(KindIO, "saveCollectionState", "writing index file", err)
	}
	for id, meta := range st.shards {
		b, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return newErr(KindInternal, "saveCollectionState", "marshaling shard meta", err)
		}
		if err := os.WriteFile(s.shardMetaPath(collection, id), b, 0o644); err != nil {
			return newErr(KindIO, "saveCollectionState", "writing shard meta", err)
		}
	}
	return nil
}

func (s *ShardedFileStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions > 0 && dimensions != s.cfg.Dimensions {
		return newErr(KindConfig, "CreateCollection",
			fmt.Sprintf("collection dimensions %d do not match store dimensions %d", dimensions, s.cfg.Dimensions), nil)
	}
	_, err := s.loadCollectionState(name)
	return err
}

func (s *ShardedFileStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	if _, err := os.Stat(s.indexPath(name)); err == nil {
		return true, nil
	}
	s.mu.RLock()
	_, ok := s.states[name]
	s.mu.RUnlock()
	return ok, nil
}

func (s *ShardedFileStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	delete(s.states, name)
	delete(s.nextShardID, name)
	s.mu.Unlock()

	if err := os.Remove(s.indexPath(name)); err != nil && !os.IsNotExist(err) {
		return newErr(KindIO, "DeleteCollection", "removing index file", err)
	}
	if err := os.RemoveAll(s.shardsDir(name)); err != nil {
		return newErr(KindIO, "DeleteCollection", "removing shards dir", err)
	}
	return nil
}

// pickShard implements the "most-empty eligible" rule: the shard with
// vector_count < max that has the minimum vector_count; allocate a new
// monotonic shard id if none qualifies.
func (s *ShardedFileStore) pickShard(collection string, st *collectionState) int {
	best := -1
	bestCount := math.MaxInt
	for id, meta := range st.shards {
		if meta.VectorCount < s.cfg.MaxVectorsPerShard && meta.VectorCount < bestCount {
			best, bestCount = id, meta.VectorCount
		}
	}
	if best != -1 {
		return best
	}
	next := s.nextShardID[collection]
	// Keep monotonic ids ahead of anything already on disk.
	for _, meta := range st.shards {
		if meta.ShardID >= next {
			next = meta.ShardID + 1
		}
	}
	s.nextShardID[collection] = next + 1
	return next
}

func (s *ShardedFileStore) InsertVectors(ctx context.Context, collection string, vectors []Embedding, metadata []Metadata) ([]string, error) {
	start := time.Now()
	if len(vectors) != len(metadata) {
		return nil, newErr(KindConfig, "InsertVectors", "vectors and metadata length mismatch", nil)
	}
	st, err := s.loadCollectionState(collection)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	ids := make([]string, 0, len(vectors))
	nowNanos := time.Now().UnixNano()
	for i, v := range vectors {
		if len(v.Vector) != s.cfg.Dimensions {
			dimErr := newErr(KindConfig, "InsertVectors",
				fmt.Sprintf("vector %d has dimension %d, expected %d", i, len(v.Vector), s.cfg.Dimensions), nil)
			s.metrics.observe(s.ProviderName(), "InsertVectors", start, dimErr)
			warnOnError(ctx, s.log, s.ProviderName(), "InsertVectors", dimErr)
			return ids, dimErr
		}
		shardID := s.pickShard(collection, st)
		meta := st.shards[shardID]
		if meta == nil {
			meta = &ShardMetadata{ShardID: shardID, CreatedAt: time.Now()}
			st.shards[shardID] = meta
		}
		id := fmt.Sprintf("%s_%d_%d", collection, i, nowNanos)
		enriched := withID(metadata[i], id)
		offset, n, err := s.writeVectorToShard(collection, shardID, v.Vector, enriched)
		if err != nil {
			s.metrics.observe(s.ProviderName(), "InsertVectors", start, err)
			warnOnError(ctx, s.log, s.ProviderName(), "InsertVectors", err)
			return ids, err
		}
		meta.VectorCount++
		meta.VectorsSize += n
		st.index[id] = &IndexEntry{ID: id, ShardID: shardID, Offset: offset, Metadata: enriched}
		ids = append(ids, id)
	}
	if err := s.saveCollectionState(collection, st); err != nil {
		s.metrics.observe(s.ProviderName(), "InsertVectors", start, err)
		warnOnError(ctx, s.log, s.ProviderName(), "InsertVectors", err)
		return ids, err
	}
	s.metrics.addVectors(s.ProviderName(), collection, len(ids))
	s.metrics.setCollectionSize(s.ProviderName(), collection, len(st.index))
	s.metrics.observe(s.ProviderName(), "InsertVectors", start, nil)
	return ids, nil
}

// writeVectorToShard appends one record to the shard's .dat file and
// returns the offset it was written at and the number of bytes written.
func (s *ShardedFileStore) writeVectorToShard(collection string, shardID int, vector []float32, meta Metadata) (int64, int64, error) {
	if err := os.MkdirAll(s.shardsDir(collection), 0o755); err != nil {
		return 0, 0, newErr(KindIO, "writeVectorToShard", "creating shards dir", err)
	}
	path := s.shardDataPath(collection, shardID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return 0, 0, newErr(KindIO, "writeVectorToShard", "opening shard", err)
	}
	defer f.Close()

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, newErr(KindIO, "writeVectorToShard", "seeking to shard end", err)
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return 0, 0, newErr(KindInternal, "writeVectorToShard", "marshaling metadata", err)
	}

	buf := make([]byte, len(vector)*4+4+len(metaBytes))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	lenOff := len(vector) * 4
	binary.LittleEndian.PutUint32(buf[lenOff:], uint32(len(metaBytes)))
	copy(buf[lenOff+4:], metaBytes)

	if _, err := f.Write(buf); err != nil {
		return 0, 0, newErr(KindIO, "writeVectorToShard", "writing record", err)
	}
	return offset, int64(len(buf)), nil
}

// readVectorFromShard reads exactly one record back given its IndexEntry.
func (s *ShardedFileStore) readVectorFromShard(collection string, entry *IndexEntry) ([]float32, error) {
	f, err := os.Open(s.shardDataPath(collection, entry.ShardID))
	if err != nil {
		return nil, newErr(KindIO, "readVectorFromShard", "opening shard", err)
	}
	defer f.Close()

	vecBytes := s.cfg.Dimensions * 4
	header := make([]byte, vecBytes+4)
	if _, err := f.ReadAt(header, entry.Offset); err != nil {
		return nil, newErr(KindIO, "readVectorFromShard", "reading record header", err)
	}
	vec := make([]float32, s.cfg.Dimensions)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(header[i*4:]))
	}
	return vec, nil
}

func (s *ShardedFileStore) SearchSimilar(ctx context.Context, collection string, query []float32, limit int, filter map[string]any) ([]SearchResult, error) {
	start := time.Now()
	st, err := s.loadCollectionState(collection)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	entries := make([]*IndexEntry, 0, len(st.index))
	for _, e := range st.index {
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	if len(entries) == 0 {
		return []SearchResult{}, nil
	}

	type scored struct {
		result SearchResult
		err    error
	}
	scores := make([]scored, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads())
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			vec, err := s.readVectorFromShard(collection, entry)
			if err != nil {
				scores[i] = scored{err: err}
				return nil
			}
			score := cosineSimilarity(query, vec)
			scores[i] = scored{result: resultFromMetadata(entry.ID, entry.Metadata, score)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		wrapped := newErr(KindIO, "SearchSimilar", "brute-force scan", err)
		s.metrics.observe(s.ProviderName(), "SearchSimilar", start, wrapped)
		warnOnError(ctx, s.log, s.ProviderName(), "SearchSimilar", wrapped)
		return nil, wrapped
	}

	results := make([]SearchResult, 0, len(scores))
	for _, sc := range scores {
		if sc.err != nil {
			wrapped := newErr(KindIO, "SearchSimilar", "reading shard record", sc.err)
			s.metrics.observe(s.ProviderName(), "SearchSimilar", start, wrapped)
			warnOnError(ctx, s.log, s.ProviderName(), "SearchSimilar", wrapped)
			return nil, wrapped
		}
		results = append(results, sc.result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	s.metrics.observe(s.ProviderName(), "SearchSimilar", start, nil)
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func maxParallelReads() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 8
}

func (s *ShardedFileStore) DeleteVectors(ctx context.Context, collection string, ids []string) error {
	st, err := s.loadCollectionState(collection)
	if err != nil {
		return err
	}
	st.mu.Lock()
	for _, id := range ids {
		if entry, ok := st.index[id]; ok {
			if meta, ok := st.shards[entry.ShardID]; ok {
				meta.VectorCount--
			}
			delete(st.index, id)
		}
	}
	err = s.saveCollectionState(collection, st)
	st.mu.Unlock()
	return err
}

func (s *ShardedFileStore) GetVectorsByIDs(ctx context.Context, collection string, ids []string) ([]SearchResult, error) {
	st, err := s.loadCollectionState(collection)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]SearchResult, 0, len(ids))
	for _, id := range ids {
		entry, ok := st.index[id]
		if !ok {
			continue
		}
		out = append(out, resultFromMetadata(id, entry.Metadata, 1.0))
	}
	return out, nil
}

func (s *ShardedFileStore) ListVectors(ctx context.Context, collection string, limit int) ([]SearchResult, error) {
	st, err := s.loadCollectionState(collection)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]SearchResult, 0, limit)
	for id, entry := range st.index {
		out = append(out, resultFromMetadata(id, entry.Metadata, 1.0))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *ShardedFileStore) GetStats(ctx context.Context, collection string) (map[string]any, error) {
	st, err := s.loadCollectionState(collection)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return map[string]any{
		"collection":   collection,
		"vector_count": len(st.index),
		"provider":     s.ProviderName(),
		"dimensions":   s.cfg.Dimensions,
		"shard_count":  len(st.shards),
	}, nil
}

func (s *ShardedFileStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	entries, err := os.ReadDir(s.cfg.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []CollectionInfo{}, nil
		}
		return nil, newErr(KindIO, "ListCollections", "reading base_path", err)
	}
	out := make([]CollectionInfo, 0)
	for _, e := range entries {
		name := e.Name()
		const suffix = "_index.json"
		if e.IsDir() || len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		collection := name[:len(name)-len(suffix)]
		st, err := s.loadCollectionState(collection)
		if err != nil {
			continue
		}
		st.mu.RLock()
		fileCount := distinctFileCount(indexToMetaMap(st.index))
		count := len(st.index)
		st.mu.RUnlock()
		out = append(out, CollectionInfo{Name: collection, VectorCount: count, FileCount: fileCount, ProviderName: s.ProviderName()})
	}
	return out, nil
}

func indexToMetaMap(index map[string]*IndexEntry) map[string]Metadata {
	out := make(map[string]Metadata, len(index))
	for id, e := range index {
		out[id] = e.Metadata
	}
	return out
}

func (s *ShardedFileStore) ListFilePaths(ctx context.Context, collection string, limit int) ([]FileInfo, error) {
	st, err := s.loadCollectionState(collection)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return aggregateFileInfo(indexToMetaMap(st.index), limit), nil
}

func (s *ShardedFileStore) GetChunksByFile(ctx context.Context, collection, filePath string) ([]SearchResult, error) {
	st, err := s.loadCollectionState(collection)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]SearchResult, 0)
	for id, entry := range st.index {
		if metaString(entry.Metadata, "file_path", "unknown") != filePath {
			continue
		}
		out = append(out, resultFromMetadata(id, entry.Metadata, 1.0))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartLine < out[j].StartLine })
	return out, nil
}

func (s *ShardedFileStore) Flush(ctx context.Context, collection string) error {
	st, err := s.loadCollectionState(collection)
	if err != nil {
		return err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return s.saveCollectionState(collection, st)
}
