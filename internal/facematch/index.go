package facematch

import (
	"errors"
	"math"

	"github.com/coder/hnsw"
)

// HNSW parameters for small identity sets
const (
	indexMaxNeighbors = 16
	indexEfSearch     = 50
)

// Neighbor is a search hit from Index.
type Neighbor struct {
	Label    string
	Distance float64
}

// Index is an in-memory HNSW graph over labelled encodings using Euclidean distance.
// It answers "who is closest" questions for audits; login decisions never use it.
type Index struct {
	graph *hnsw.Graph[string]
	dim   int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	g := hnsw.NewGraph[string]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.EfSearch = indexEfSearch
	g.Distance = hnsw.EuclideanDistance
	return &Index{graph: g}
}

// Add inserts a candidate. Unusable candidates and encodings whose dimension differs
// from the first indexed encoding are skipped; Add reports whether it was inserted.
func (x *Index) Add(c Candidate) bool {
	if !c.Usable() {
		return false
	}
	if x.dim == 0 {
		x.dim = len(c.Encoding)
	}
	if len(c.Encoding) != x.dim {
		return false
	}
	x.graph.Add(hnsw.MakeNode(c.Label, []float32(c.Encoding)))
	return true
}

// Len returns the number of indexed encodings.
func (x *Index) Len() int {
	return x.graph.Len()
}

// Search returns up to k nearest neighbours of probe, closest first.
func (x *Index) Search(probe Encoding, k int) ([]Neighbor, error) {
	if x.graph.Len() == 0 {
		return nil, errors.New("index is empty")
	}
	if len(probe) != x.dim {
		return nil, errors.New("probe dimension does not match index")
	}

	nodes := x.graph.Search([]float32(probe), k)
	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Neighbor{
			Label:    n.Key,
			Distance: EuclideanDistance(probe, Encoding(n.Value)),
		})
	}
	return out, nil
}

// Pair is two identities whose encodings are within a threshold of each other.
type Pair struct {
	A, B     string
	Distance float64
}

// NearPairs returns every unordered pair of indexed candidates closer than threshold,
// looking at the k nearest neighbours of each candidate.
func NearPairs(candidates []Candidate, k int, threshold float64) ([]Pair, error) {
	idx := NewIndex()
	for _, c := range candidates {
		idx.Add(c)
	}
	if idx.Len() < 2 {
		return nil, nil
	}

	seen := make(map[[2]string]bool)
	var pairs []Pair
	for _, c := range candidates {
		if !c.Usable() || len(c.Encoding) != idx.dim {
			continue
		}
		// k+1 because the candidate finds itself first.
		hits, err := idx.Search(c.Encoding, k+1)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if h.Label == c.Label || h.Distance >= threshold || math.IsInf(h.Distance, 1) {
				continue
			}
			key := [2]string{min(c.Label, h.Label), max(c.Label, h.Label)}
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, Pair{A: key[0], B: key[1], Distance: h.Distance})
		}
	}
	return pairs, nil
}
