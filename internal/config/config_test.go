package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "edgevec", cfg.VectorStore.Provider)
	require.Equal(t, "mock", cfg.Embeddings["default"].Provider)
}

func TestLoadMergesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vectorstore:\n  provider: filesystem\n  filesystem:\n    base_path: /tmp/data\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "filesystem", cfg.VectorStore.Provider)
	require.Equal(t, "/tmp/data", cfg.VectorStore.Filesystem.BasePath)
}

func TestLoadEnvironmentOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vectorstore:\n  provider: filesystem\n"), 0o644))

	t.Setenv("VECTORCORE_VECTORSTORE__PROVIDER", "qdrant")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "qdrant", cfg.VectorStore.Provider)
}

func TestSecretNeverRendersPlaintext(t *testing.T) {
	s := Secret("sk-super-secret")
	require.Equal(t, "[REDACTED]", s.String())
	require.Equal(t, "sk-super-secret", s.Reveal())
}

func TestDurationRoundTripsThroughJSON(t *testing.T) {
	d := Duration(1500000000)
	b, err := d.MarshalJSON()
	require.NoError(t, err)

	var out Duration
	require.NoError(t, out.UnmarshalJSON(b))
	require.Equal(t, d.Duration(), out.Duration())
}
