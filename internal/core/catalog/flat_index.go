package catalog

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// FlatIndex is an exact inner-product index over L2-normalized vectors.
type FlatIndex struct {
	mu      sync.RWMutex
	ids     []string
	vectors [][]float32
	dim     int
}

func NewFlatIndex() *FlatIndex {
	return &FlatIndex{}
}

func (f *FlatIndex) Add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("flat index: %d ids for %d vectors", len(ids), len(vectors))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, v := range vectors {
		if f.dim == 0 {
			f.dim = len(v)
		}
		if len(v) != f.dim {
			return fmt.Errorf("flat index: vector %q has dimension %d, want %d", ids[i], len(v), f.dim)
		}
		f.ids = append(f.ids, ids[i])
		f.vectors = append(f.vectors, normalize(v))
	}
	return nil
}

func (f *FlatIndex) Search(_ context.Context, query []float32, k int) ([]string, []float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.ids) == 0 || k <= 0 {
		return nil, nil, nil
	}
	if len(query) != f.dim {
		return nil, nil, fmt.Errorf("flat index: query dimension %d, want %d", len(query), f.dim)
	}

	q := normalize(query)
	order := make([]int, len(f.ids))
	scores := make([]float32, len(f.ids))
	for i, v := range f.vectors {
		order[i] = i
		scores[i] = dot(q, v)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	ids := make([]string, k)
	out := make([]float32, k)
	for i := 0; i < k; i++ {
		ids[i] = f.ids[order[i]]
		out[i] = scores[order[i]]
	}
	return ids, out, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
