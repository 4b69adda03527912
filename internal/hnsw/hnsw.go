// Package hnsw implements a Hierarchical Navigable Small World graph: an
// approximate nearest-neighbor index over dense float32 vectors.
//
// The graph has no notion of collections, external ids, or metadata — it
// operates purely on (internal id, vector) pairs. Callers that need those
// concepts (see internal/vectorstore) layer them on top.
package hnsw

import (
	"math"
	"math/rand"
	"sort"
)

// Metric selects the distance function used for graph construction and
// search.
type Metric int

const (
	Cosine Metric = iota
	SquaredL2
	DotProduct
)

// Config parameterizes a Graph. M and M0 cap the neighbor list size for
// upper layers and layer zero respectively; by convention M0 is about 2*M.
// EfConstruction and EfSearch control the candidate-list width used during
// insertion and search.
type Config struct {
	Dimensions     int
	M              int
	M0             int
	EfConstruction int
	EfSearch       int
	Metric         Metric
	Seed           int64
}

// DefaultConfig returns reasonable defaults for code-search-sized
// collections (tens of thousands of chunks).
func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions:     dimensions,
		M:              16,
		M0:             32,
		EfConstruction: 200,
		EfSearch:       64,
		Metric:         Cosine,
		Seed:           42,
	}
}

// Neighbor is a single search result: an internal node id and its distance
// (for SquaredL2, smaller is closer; for Cosine/DotProduct, larger is more
// similar — callers interpret ordering per metric).
type Neighbor struct {
	ID    uint32
	Score float64
}

type node struct {
	vector  []float32
	layers  [][]uint32 // neighbor ids per layer, layers[0] is layer 0
	deleted bool
}

// Graph is a single-writer HNSW index. It is not safe for concurrent
// mutation; callers (internal/vectorstore's Embedded-ANN actor) serialize
// access externally.
type Graph struct {
	cfg       Config
	rng       *rand.Rand
	nodes     []node
	entryID   int64 // -1 when empty
	topLevel  int
	mL        float64
	liveCount int
}

// New constructs an empty graph for the given configuration.
func New(cfg Config) *Graph {
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.M0 <= 0 {
		cfg.M0 = 2 * cfg.M
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = 200
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 64
	}
	return &Graph{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		entryID: -1,
		mL:      1.0 / math.Log(float64(cfg.M)),
	}
}

// Len returns the number of live (non-deleted) vectors.
func (g *Graph) Len() int { return g.liveCount }

// TotalLen returns the arena size including soft-deleted slots.
func (g *Graph) TotalLen() int { return len(g.nodes) }

func (g *Graph) randomLevel() int {
	level := int(math.Floor(-math.Log(g.rng.Float64()) * g.mL))
	// Guard against runaway levels from the exponential tail; 32 layers is
	// far beyond anything a code-search-sized collection would need.
	if level > 31 {
		level = 31
	}
	return level
}

// Insert adds a vector to the graph and returns its internal id. The caller
// must ensure len(vector) == cfg.Dimensions.
func (g *Graph) Insert(vector []float32) uint32 {
	vec := make([]float32, len(vector))
	copy(vec, vector)

	id := uint32(len(g.nodes))
	level := g.randomLevel()
	n := node{vector: vec, layers: make([][]uint32, level+1)}
	for l := range n.layers {
		cap := g.cfg.M
		if l == 0 {
			cap = g.cfg.M0
		}
		n.layers[l] = make([]uint32, 0, cap)
	}
	g.nodes = append(g.nodes, n)
	g.liveCount++

	if g.entryID == -1 {
		g.entryID = int64(id)
		g.topLevel = level
		return id
	}

	entry := uint32(g.entryID)
	// Descend from the top layer to level+1 with greedy single-neighbor
	// search to find a good entry point for the insertion layers.
	for l := g.topLevel; l > level; l-- {
		entry = g.greedyClosest(entry, vec, l)
	}

	for l := min(level, g.topLevel); l >= 0; l-- {
		candidates := g.searchLayer(vec, entry, g.cfg.EfConstruction, l)
		m := g.cfg.M
		if l == 0 {
			m = g.cfg.M0
		}
		selected := selectNeighbors(candidates, m, g.better)
		for _, c := range selected {
			g.connect(id, c.ID, l)
			g.connect(c.ID, id, l)
			g.trimNeighbors(c.ID, l)
		}
		if len(selected) > 0 {
			entry = selected[0].ID
		}
	}

	if level > g.topLevel {
		g.topLevel = level
		g.entryID = int64(id)
	}
	return id
}

func (g *Graph) connect(from, to uint32, layer int) {
	n := &g.nodes[from]
	if layer >= len(n.layers) {
		return
	}
	for _, existing := range n.layers[layer] {
		if existing == to {
			return
		}
	}
	n.layers[layer] = append(n.layers[layer], to)
}

func (g *Graph) trimNeighbors(id uint32, layer int) {
	n := &g.nodes[id]
	if layer >= len(n.layers) {
		return
	}
	m := g.cfg.M
	if layer == 0 {
		m = g.cfg.M0
	}
	if len(n.layers[layer]) <= m {
		return
	}
	cands := make([]Neighbor, 0, len(n.layers[layer]))
	for _, nb := range n.layers[layer] {
		cands = append(cands, Neighbor{ID: nb, Score: g.distance(n.vector, g.nodes[nb].vector)})
	}
	best := selectNeighbors(cands, m, g.better)
	trimmed := make([]uint32, len(best))
	for i, b := range best {
		trimmed[i] = b.ID
	}
	n.layers[layer] = trimmed
}

// greedyClosest walks layer l from entry toward the single closest neighbor
// to query, stopping when no neighbor improves on the current node.
func (g *Graph) greedyClosest(entry uint32, query []float32, l int) uint32 {
	current := entry
	currentDist := g.distance(query, g.nodes[current].vector)
	for {
		improved := false
		if l < len(g.nodes[current].layers) {
			for _, nb := range g.nodes[current].layers[l] {
				if g.nodes[nb].deleted {
					continue
				}
				d := g.distance(query, g.nodes[nb].vector)
				if g.better(d, currentDist) {
					current, currentDist = nb, d
					improved = true
				}
			}
		}
		if !improved {
			return current
		}
	}
}

// searchLayer performs a best-first search on layer l starting from entry,
// returning up to ef candidates ordered best-first.
func (g *Graph) searchLayer(query []float32, entry uint32, ef int, l int) []Neighbor {
	visited := map[uint32]bool{entry: true}
	entryDist := g.distance(query, g.nodes[entry].vector)

	candidates := []Neighbor{{ID: entry, Score: entryDist}}
	results := []Neighbor{}
	if !g.nodes[entry].deleted {
		results = append(results, Neighbor{ID: entry, Score: entryDist})
	}

	for len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return g.better(candidates[i].Score, candidates[j].Score) })
		c := candidates[0]
		candidates = candidates[1:]

		if len(results) >= ef {
			worst := worstOf(results, g.better)
			if !g.better(c.Score, worst.Score) {
				break
			}
		}

		if l >= len(g.nodes[c.ID].layers) {
			continue
		}
		for _, nb := range g.nodes[c.ID].layers[l] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			d := g.distance(query, g.nodes[nb].vector)
			if len(results) < ef {
				candidates = append(candidates, Neighbor{ID: nb, Score: d})
				if !g.nodes[nb].deleted {
					results = append(results, Neighbor{ID: nb, Score: d})
				}
				continue
			}
			worst := worstOf(results, g.better)
			if g.better(d, worst.Score) {
				candidates = append(candidates, Neighbor{ID: nb, Score: d})
				if !g.nodes[nb].deleted {
					results = append(results, Neighbor{ID: nb, Score: d})
					results = trimWorst(results, ef, g.better)
				}
			}
		}
	}
	sort.Slice(results, func(i, j int) bool { return g.better(results[i].Score, results[j].Score) })
	return results
}

func worstOf(ns []Neighbor, better func(a, b float64) bool) Neighbor {
	worst := ns[0]
	for _, n := range ns[1:] {
		if better(worst.Score, n.Score) {
			worst = n
		}
	}
	return worst
}

func trimWorst(ns []Neighbor, limit int, better func(a, b float64) bool) []Neighbor {
	if len(ns) <= limit {
		return ns
	}
	sort.Slice(ns, func(i, j int) bool { return better(ns[i].Score, ns[j].Score) })
	return ns[:limit]
}

// selectNeighbors picks the m best-scoring candidates under better (simple
// heuristic — no diversity/pruning pass beyond best-of-ef, which keeps the
// package free of the original paper's optional heuristic #2).
func selectNeighbors(candidates []Neighbor, m int, better func(a, b float64) bool) []Neighbor {
	if len(candidates) <= m {
		out := make([]Neighbor, len(candidates))
		copy(out, candidates)
		return out
	}
	sorted := make([]Neighbor, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return better(sorted[i].Score, sorted[j].Score) })
	return sorted[:m]
}

// Search returns up to k neighbors of query, best-first per the graph's
// configured metric, excluding soft-deleted nodes.
func (g *Graph) Search(query []float32, k int) []Neighbor {
	if g.entryID == -1 || k <= 0 {
		return nil
	}
	entry := uint32(g.entryID)
	for l := g.topLevel; l > 0; l-- {
		entry = g.greedyClosest(entry, query, l)
	}
	ef := g.cfg.EfSearch
	if k > ef {
		ef = k
	}
	candidates := g.searchLayer(query, entry, ef, 0)
	filtered := candidates[:0]
	for _, c := range candidates {
		if !g.nodes[c.ID].deleted {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) > k {
		filtered = filtered[:k]
	}
	out := make([]Neighbor, len(filtered))
	copy(out, filtered)
	return out
}

// Delete soft-deletes id: it is excluded from future Search results but its
// arena slot and neighbor edges are retained so other nodes' graph traversal
// is unaffected.
func (g *Graph) Delete(id uint32) {
	if int(id) >= len(g.nodes) || g.nodes[id].deleted {
		return
	}
	g.nodes[id].deleted = true
	g.liveCount--
}

// better reports whether score a ranks ahead of score b under the graph's
// configured metric (true distance metrics: smaller is better; similarity
// metrics: larger is better).
func (g *Graph) better(a, b float64) bool {
	if g.cfg.Metric == SquaredL2 {
		return a < b
	}
	return a > b
}

func (g *Graph) distance(a, b []float32) float64 {
	switch g.cfg.Metric {
	case SquaredL2:
		return squaredL2(a, b)
	case DotProduct:
		return dotProduct(a, b)
	default:
		return cosine(a, b)
	}
}

func cosine(a, b []float32) float64 {
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

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
