package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/rl1809/shopassist/internal/core/tokenize"
)

// HashEmbedder is a deterministic bag-of-words embedder using signed feature
// hashing. It needs no model and no network.
type HashEmbedder struct {
	Dimensions int
}

func NewHashEmbedder(dimensions int) *HashEmbedder {
	return &HashEmbedder{Dimensions: dimensions}
}

func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if h.Dimensions <= 0 {
		return nil, fmt.Errorf("hash embedder: dimensions must be positive, got %d", h.Dimensions)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, h.Dimensions)
		for _, w := range tokenize.Words(text) {
			sum := xxhash.Sum64String(stem(w))
			idx := sum % uint64(h.Dimensions)
			if sum>>63 == 1 {
				vec[idx]--
			} else {
				vec[idx]++
			}
		}
		out[i] = vec
	}
	return out, nil
}

// stem drops a plural "s" so "shirts" and "shirt" share a bucket.
func stem(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}
