// Package catalog holds the product set and ranks it against free-text queries.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/port"
)

// Hit is one ranked search result.
type Hit struct {
	ProductID string  `json:"id"`
	Score     float64 `json:"score"`
}

// Index is safe for concurrent use. The product set never changes after New.
type Index struct {
	products []domain.Product
	position map[string]int

	embedder port.Embedder
	vectors  port.VectorIndex
	log      *zap.Logger

	mu    sync.Mutex
	ready bool
}

type Option func(*Index)

// WithEmbedder enables similarity ranking.
func WithEmbedder(e port.Embedder) Option {
	return func(c *Index) { c.embedder = e }
}

// WithVectorIndex replaces the in-process flat index.
func WithVectorIndex(v port.VectorIndex) Option {
	return func(c *Index) { c.vectors = v }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Index) {
		if l != nil {
			c.log = l
		}
	}
}

func New(products []domain.Product, opts ...Option) *Index {
	c := &Index{
		products: append([]domain.Product(nil), products...),
		position: make(map[string]int, len(products)),
		log:      zap.NewNop(),
	}
	for i, p := range c.products {
		c.position[p.ID] = i
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init embeds the catalog once. It is a no-op when already initialized or
// when no embedder is configured.
func (c *Index) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready || c.embedder == nil {
		return nil
	}

	ids := make([]string, len(c.products))
	texts := make([]string, len(c.products))
	for i, p := range c.products {
		ids[i] = p.ID
		texts[i] = p.Text()
	}

	vecs, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed catalog: %w", err)
	}
	if len(vecs) != len(ids) {
		return fmt.Errorf("embed catalog: got %d vectors for %d products", len(vecs), len(ids))
	}

	if c.vectors == nil {
		c.vectors = NewFlatIndex()
	}
	if err := c.vectors.Add(ids, vecs); err != nil {
		return fmt.Errorf("index catalog: %w", err)
	}

	c.ready = true
	c.log.Info("catalog index initialized", zap.Int("products", len(ids)))
	return nil
}

// Search returns at most k products ranked by similarity to query. Without a
// usable backend it returns the first k products with scores 1.0, 0.95, ...
func (c *Index) Search(ctx context.Context, query string, k int) []Hit {
	if k <= 0 {
		return nil
	}
	if c.embedder == nil {
		return c.fallback(k)
	}
	if err := c.Init(ctx); err != nil {
		c.log.Warn("similarity backend unavailable, using catalog order", zap.Error(err))
		return c.fallback(k)
	}

	qv, err := c.embedder.Embed(ctx, []string{query})
	if err != nil || len(qv) != 1 {
		c.log.Warn("query embedding failed, using catalog order", zap.Error(err))
		return c.fallback(k)
	}

	ids, scores, err := c.vectors.Search(ctx, qv[0], k)
	if err != nil {
		c.log.Warn("vector search failed, using catalog order", zap.Error(err))
		return c.fallback(k)
	}

	hits := make([]Hit, 0, len(ids))
	for i, id := range ids {
		if _, ok := c.position[id]; !ok {
			continue
		}
		hits = append(hits, Hit{ProductID: id, Score: float64(scores[i])})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return c.position[hits[i].ProductID] < c.position[hits[j].ProductID]
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (c *Index) fallback(k int) []Hit {
	if k > len(c.products) {
		k = len(c.products)
	}
	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = Hit{ProductID: c.products[i].ID, Score: 1.0 - 0.05*float64(i)}
	}
	return hits
}

func (c *Index) Get(id string) (domain.Product, bool) {
	i, ok := c.position[id]
	if !ok {
		return domain.Product{}, false
	}
	return c.products[i], true
}

// Products returns the catalog in registration order.
func (c *Index) Products() []domain.Product {
	return append([]domain.Product(nil), c.products...)
}

func (c *Index) ByCategory(category string) []domain.Product {
	var out []domain.Product
	for _, p := range c.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Categories lists categories in order of first appearance.
func (c *Index) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.products {
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}
