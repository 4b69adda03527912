package vectorstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"sort"

	"github.com/fyrsmithlabs/vectorcore/internal/logging"
)

const keySize = 32 // AES-256
const nonceSize = 12 // 96 bits, standard GCM nonce

// EncryptingConfig configures the Encrypting-Wrap decorator.
type EncryptingConfig struct {
	KeyPath         string
	KeyRotationDays int // declared, not enforced — see SPEC_FULL.md §9
}

// wrapperRecord is the only shape the inner store ever sees: wrapper fields
// plus cleartext file_path/id so listing and file aggregation still work
// without decrypting every record.
//
// The encrypted payload rides inside the "content" key rather than a new
// top-level key: every inner Store's Result construction rule already
// carries "content" verbatim through its own metadata pipeline (and through
// a SearchResult's Content field), so the wrapper never needs a side
// channel or an extra round-trip to recover nonce/ciphertext after a read.
type wrapperRecord struct {
	ID         string `json:"id"`
	FilePath   string `json:"file_path"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func (w wrapperRecord) toMetadata() Metadata {
	payload, _ := json.Marshal(struct {
		Nonce string `json:"nonce"`
		CT    string `json:"ciphertext"`
	}{w.Nonce, w.Ciphertext})
	return Metadata{"id": w.ID, "file_path": w.FilePath, "content": string(payload)}
}

func wrapperFromMetadata(id, filePath, content string) (wrapperRecord, bool) {
	var payload struct {
		Nonce string `json:"nonce"`
		CT    string `json:"ciphertext"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return wrapperRecord{}, false
	}
	return wrapperRecord{ID: id, FilePath: filePath, Nonce: payload.Nonce, Ciphertext: payload.CT}, true
}

// EncryptingStore decorates an inner Store, encrypting metadata at rest
// with AES-256-GCM while leaving vectors in the clear. Vectors carry no
// direct PII and must remain usable for ANN search by the inner store.
type EncryptingStore struct {
	inner Store
	gcm   cipher.AEAD
	cfg   EncryptingConfig
	log   *logging.Logger
}

// NewEncryptingStore loads the master key from cfg.KeyPath, generating and
// persisting a fresh one (mode 0600) if absent, then wraps inner.
func NewEncryptingStore(inner Store, cfg EncryptingConfig, log *logging.Logger) (*EncryptingStore, error) {
	if cfg.KeyPath == "" {
		return nil, newErr(KindConfig, "NewEncryptingStore", "key_path is required", nil)
	}
	key, err := loadOrGenerateKey(cfg.KeyPath)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, newErr(KindInternal, "NewEncryptingStore", "constructing AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, newErr(KindInternal, "NewEncryptingStore", "constructing GCM", err)
	}
	return &EncryptingStore{inner: inner, gcm: gcm, cfg: cfg, log: log}, nil
}

// loadOrGenerateKey reads a 32-byte master key from path, or generates and
// persists one if the file does not exist yet. The key is held in memory
// for the process lifetime; rotation mechanics are out of scope (declared
// via KeyRotationDays but not performed).
func loadOrGenerateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != keySize {
			return nil, newErr(KindConfig, "loadOrGenerateKey", "key file has wrong length", nil)
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, newErr(KindIO, "loadOrGenerateKey", "reading key file", err)
	}
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, newErr(KindInternal, "loadOrGenerateKey", "generating key", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, newErr(KindIO, "loadOrGenerateKey", "persisting key file", err)
	}
	return key, nil
}

func (s *EncryptingStore) ProviderName() string { return "encrypting(" + s.inner.ProviderName() + ")" }

func (s *EncryptingStore) encrypt(id string, m Metadata) (Metadata, error) {
	plaintext, err := json.Marshal(m)
	if err != nil {
		return nil, newErr(KindInternal, "encrypt", "marshaling metadata", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, newErr(KindInternal, "encrypt", "generating nonce", err)
	}
	ciphertext := s.gcm.Seal(nil, nonce, plaintext, nil)
	w := wrapperRecord{
		ID:         id,
		FilePath:   metaString(m, "file_path", "unknown"),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
	return w.toMetadata(), nil
}

// decrypt reverses encrypt given a wrapper record's fields as carried by a
// SearchResult. Decryption failure is fatal for the operation — the spec
// requires surfacing this as an error rather than silently dropping the
// record, since it signals tampering or key mismatch.
func (s *EncryptingStore) decrypt(id, filePath, content string) (Metadata, error) {
	w, ok := wrapperFromMetadata(id, filePath, content)
	if !ok {
		return nil, newErr(KindInternal, "decrypt", "metadata is not a wrapper record", nil)
	}
	nonce, err := base64.StdEncoding.DecodeString(w.Nonce)
	if err != nil {
		return nil, newErr(KindInternal, "decrypt", "decoding nonce", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(w.Ciphertext)
	if err != nil {
		return nil, newErr(KindInternal, "decrypt", "decoding ciphertext", err)
	}
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, newErr(KindInternal, "decrypt", "authenticated decryption failed", err)
	}
	var out Metadata
	if err := json.Unmarshal(plaintext, &out); err != nil {
		return nil, newErr(KindInternal, "decrypt", "parsing decrypted metadata", err)
	}
	return out, nil
}

func (s *EncryptingStore) unwrapResult(r SearchResult) (SearchResult, error) {
	plain, err := s.decrypt(r.ID, r.FilePath, r.Content)
	if err != nil {
		warnOnError(context.Background(), s.log, s.ProviderName(), "decrypt", err)
		return SearchResult{}, err
	}
	return resultFromMetadata(r.ID, plain, r.Score), nil
}

func (s *EncryptingStore) unwrapAll(raw []SearchResult) ([]SearchResult, error) {
	out := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		plain, err := s.unwrapResult(r)
		if err != nil {
			return nil, err
		}
		out = append(out, plain)
	}
	return out, nil
}

func (s *EncryptingStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	return s.inner.CreateCollection(ctx, name, dimensions)
}

func (s *EncryptingStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return s.inner.CollectionExists(ctx, name)
}

func (s *EncryptingStore) DeleteCollection(ctx context.Context, name string) error {
	return s.inner.DeleteCollection(ctx, name)
}

func (s *EncryptingStore) InsertVectors(ctx context.Context, collection string, vectors []Embedding, metadata []Metadata) ([]string, error) {
	// External ids are assigned by the inner store; encrypt using a
	// placeholder id derived from file_path, then re-key once ids are known
	// is unnecessary because the wrapper's id is only used for passthrough,
	// not lookup — the inner store's own id remains authoritative.
	wrapped := make([]Metadata, len(metadata))
	for i, m := range metadata {
		w, err := s.encrypt("", m)
		if err != nil {
			return nil, err
		}
		wrapped[i] = w
	}
	return s.inner.InsertVectors(ctx, collection, vectors, wrapped)
}

func (s *EncryptingStore) SearchSimilar(ctx context.Context, collection string, query []float32, limit int, filter map[string]any) ([]SearchResult, error) {
	raw, err := s.inner.SearchSimilar(ctx, collection, query, limit, filter)
	if err != nil {
		return nil, err
	}
	return s.unwrapAll(raw)
}

func (s *EncryptingStore) DeleteVectors(ctx context.Context, collection string, ids []string) error {
	return s.inner.DeleteVectors(ctx, collection, ids)
}

func (s *EncryptingStore) GetVectorsByIDs(ctx context.Context, collection string, ids []string) ([]SearchResult, error) {
	raw, err := s.inner.GetVectorsByIDs(ctx, collection, ids)
	if err != nil {
		return nil, err
	}
	return s.unwrapAll(raw)
}

func (s *EncryptingStore) ListVectors(ctx context.Context, collection string, limit int) ([]SearchResult, error) {
	raw, err := s.inner.ListVectors(ctx, collection, limit)
	if err != nil {
		return nil, err
	}
	return s.unwrapAll(raw)
}

func (s *EncryptingStore) GetStats(ctx context.Context, collection string) (map[string]any, error) {
	stats, err := s.inner.GetStats(ctx, collection)
	if err != nil {
		return nil, err
	}
	stats["encryption_enabled"] = true
	stats["encryption_algorithm"] = "AES-256-GCM"
	return stats, nil
}

func (s *EncryptingStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	return s.inner.ListCollections(ctx)
}

// ListFilePaths delegates for file_path/chunk_count (carried cleartext by
// the wrapper), then recovers language per file from its first chunk by
// decryption — language lives inside the encrypted payload, so the inner
// store's own aggregation never sees it.
func (s *EncryptingStore) ListFilePaths(ctx context.Context, collection string, limit int) ([]FileInfo, error) {
	infos, err := s.inner.ListFilePaths(ctx, collection, limit)
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, len(infos))
	for i, info := range infos {
		chunks, err := s.GetChunksByFile(ctx, collection, info.FilePath)
		if err != nil {
			return nil, err
		}
		if len(chunks) > 0 {
			info.Language = chunks[0].Language
		}
		out[i] = info
	}
	return out, nil
}

// GetChunksByFile delegates for matching and decrypts the results, then
// re-sorts by start_line: the inner store's own sort runs over the
// cleartext wrapper where start_line is absent (it lives inside the
// encrypted payload), so its ordering is meaningless until after decrypt.
func (s *EncryptingStore) GetChunksByFile(ctx context.Context, collection, filePath string) ([]SearchResult, error) {
	raw, err := s.inner.GetChunksByFile(ctx, collection, filePath)
	if err != nil {
		return nil, err
	}
	plain, err := s.unwrapAll(raw)
	if err != nil {
		return nil, err
	}
	sort.Slice(plain, func(i, j int) bool { return plain[i].StartLine < plain[j].StartLine })
	return plain, nil
}

func (s *EncryptingStore) Flush(ctx context.Context, collection string) error {
	return s.inner.Flush(ctx, collection)
}
