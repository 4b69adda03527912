package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEncryptingStore(t *testing.T, inner Store) *EncryptingStore {
	t.Helper()
	s, err := NewEncryptingStore(inner, EncryptingConfig{KeyPath: filepath.Join(t.TempDir(), "key.bin")}, nil)
	require.NoError(t, err)
	return s
}

// TestEncryptingRoundTripHidesPlaintextFromInnerStore reproduces the
// conformance scenario: a metadata field with a secret value must round-trip
// through SearchSimilar, yet the inner store's own raw read path must never
// expose the plaintext field value directly.
func TestEncryptingRoundTripHidesPlaintextFromInnerStore(t *testing.T) {
	ctx := context.Background()
	inner := newTestEmbeddedStore(t, 2)
	s := newTestEncryptingStore(t, inner)

	ids, err := s.InsertVectors(ctx, "code",
		[]Embedding{{Vector: []float32{1, 0}, Dimensions: 2}},
		[]Metadata{{"file_path": "secret.go", "extra": "secret"}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	results, err := s.SearchSimilar(ctx, "code", []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "secret.go", results[0].FilePath)

	rawInner, err := inner.GetVectorsByIDs(ctx, "code", ids)
	require.NoError(t, err)
	require.Len(t, rawInner, 1)
	require.NotContains(t, rawInner[0].Content, "secret")
}

func TestEncryptingStoreDelegatesDeleteAndStats(t *testing.T) {
	ctx := context.Background()
	inner := newTestEmbeddedStore(t, 2)
	s := newTestEncryptingStore(t, inner)

	ids, err := s.InsertVectors(ctx, "code",
		[]Embedding{{Vector: []float32{1, 0}, Dimensions: 2}},
		[]Metadata{{"file_path": "a.go"}})
	require.NoError(t, err)

	stats, err := s.GetStats(ctx, "code")
	require.NoError(t, err)
	require.Equal(t, true, stats["encryption_enabled"])

	require.NoError(t, s.DeleteVectors(ctx, "code", ids))
	out, err := s.GetVectorsByIDs(ctx, "code", ids)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestEncryptingKeyPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	keyPath := filepath.Join(t.TempDir(), "key.bin")

	inner1 := newTestEmbeddedStore(t, 2)
	s1, err := NewEncryptingStore(inner1, EncryptingConfig{KeyPath: keyPath}, nil)
	require.NoError(t, err)
	ids, err := s1.InsertVectors(ctx, "code",
		[]Embedding{{Vector: []float32{1, 0}, Dimensions: 2}},
		[]Metadata{{"file_path": "a.go", "extra": "hello"}})
	require.NoError(t, err)

	raw, err := inner1.GetVectorsByIDs(ctx, "code", ids)
	require.NoError(t, err)

	s2, err := NewEncryptingStore(inner1, EncryptingConfig{KeyPath: keyPath}, nil)
	require.NoError(t, err)
	unwrapped, err := s2.unwrapResult(raw[0])
	require.NoError(t, err)
	require.Equal(t, "a.go", unwrapped.FilePath)
}
