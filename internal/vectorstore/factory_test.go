package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStoreDispatchesKnownProviders(t *testing.T) {
	cases := []struct {
		name string
		cfg  StoreConfig
	}{
		{"edgevec", StoreConfig{Provider: "edgevec", Dimensions: 4}},
		{"filesystem", StoreConfig{Provider: "filesystem", Dimensions: 4, Address: t.TempDir()}},
		{"qdrant", StoreConfig{Provider: "qdrant", Dimensions: 4, Address: "localhost:6334"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewStore(tc.cfg, nil, nil)
			require.NoError(t, err)
			require.NotNil(t, s)
		})
	}
}

func TestNewStoreRejectsUnknownProvider(t *testing.T) {
	_, err := NewStore(StoreConfig{Provider: "not-a-real-provider"}, nil, nil)
	require.Error(t, err)
}

func TestNewStoreRejectsMilvus(t *testing.T) {
	_, err := NewStore(StoreConfig{Provider: "milvus"}, nil, nil)
	require.Error(t, err)
}

func TestNewStoreWrapsWithEncryption(t *testing.T) {
	cfg := StoreConfig{
		Provider:   "edgevec",
		Dimensions: 4,
		Encrypting: &EncryptingConfig{KeyPath: t.TempDir() + "/key.bin"},
	}
	s, err := NewStore(cfg, nil, nil)
	require.NoError(t, err)
	require.Contains(t, s.ProviderName(), "encrypting(")
}
