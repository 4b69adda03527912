package hnsw

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func vec(dims int, fill float32) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestInsertAndSearchReturnsSelf(t *testing.T) {
	g := New(DefaultConfig(8))
	var ids []uint32
	for i := 0; i < 20; i++ {
		v := vec(8, float32(i)*0.1)
		ids = append(ids, g.Insert(v))
	}

	results := g.Search(vec(8, 1.0), 5)
	require.NotEmpty(t, results)
	require.LessOrEqual(t, len(results), 5)
	require.Equal(t, ids[9], results[0].ID) // i=9 gives fill 0.9, closest to query fill 1.0 under cosine
}

func TestSoftDeleteExcludedFromSearch(t *testing.T) {
	g := New(DefaultConfig(4))
	id1 := g.Insert([]float32{1, 0, 0, 0})
	_ = g.Insert([]float32{0, 1, 0, 0})

	require.Equal(t, 2, g.Len())
	g.Delete(id1)
	require.Equal(t, 1, g.Len())
	require.Equal(t, 2, g.TotalLen())

	results := g.Search([]float32{1, 0, 0, 0}, 5)
	for _, r := range results {
		require.NotEqual(t, id1, r.ID)
	}
}

func TestSquaredL2OrdersAscending(t *testing.T) {
	cfg := DefaultConfig(2)
	cfg.Metric = SquaredL2
	g := New(cfg)
	near := g.Insert([]float32{1, 1})
	far := g.Insert([]float32{10, 10})

	results := g.Search([]float32{0, 0}, 2)
	require.Len(t, results, 2)
	require.Equal(t, near, results[0].ID)
	require.Equal(t, far, results[1].ID)
	require.Less(t, results[0].Score, results[1].Score)
}

func TestEmptyGraphSearch(t *testing.T) {
	g := New(DefaultConfig(4))
	require.Empty(t, g.Search([]float32{1, 2, 3, 4}, 5))
}
