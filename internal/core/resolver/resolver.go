// Package resolver turns references in an utterance ("p02", "the second
// one", "it") into catalog product ids using the session's memory.
package resolver

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rl1809/shopassist/internal/core/catalog"
	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/core/tokenize"
)

// ClarifyLimit is the most cards a clarifying question offers.
const ClarifyLimit = 5

const defaultClarifyQuery = "shirt"

// Catalog is the subset of the catalog index the resolver reads.
type Catalog interface {
	Products() []domain.Product
	Get(id string) (domain.Product, bool)
	Search(ctx context.Context, query string, k int) []catalog.Hit
}

var ordinals = map[string]int{
	"first": 1, "1st": 1,
	"second": 2, "2nd": 2,
	"third": 3, "3rd": 3,
	"fourth": 4, "4th": 4,
	"fifth": 5, "5th": 5,
}

var pronouns = map[string]bool{
	"it": true, "that": true, "this": true, "those": true,
	"these": true, "them": true, "itself": true,
}

var sizePattern = regexp.MustCompile(`(?i)\b(?:size|in)\s*[:=]?\s*(xxl|xl|xs|s|m|l)\b`)

var quantityPattern = regexp.MustCompile(`(?i)^x?(\d+)(?:pcs|pieces|qty|quantity|x|times)?$`)

type Resolver struct {
	catalog Catalog
}

func New(c Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// Resolve finds the product the utterance refers to. Explicit ids win over
// ordinals, ordinals over pronouns. On success sess.LastMentioned is set.
func (r *Resolver) Resolve(utterance string, sess *domain.Session) (string, bool) {
	id, ok := r.resolve(utterance, sess.LastRecommended, sess.LastMentioned)
	if ok {
		sess.LastMentioned = id
	}
	return id, ok
}

// ResolveAmong resolves against an explicit candidate list instead of the
// session's last recommendations. The session is not modified.
func (r *Resolver) ResolveAmong(utterance string, candidates []string) (string, bool) {
	return r.resolve(utterance, candidates, "")
}

func (r *Resolver) resolve(utterance string, listed []string, mentioned string) (string, bool) {
	folded := tokenize.Fold(utterance)
	for _, p := range r.catalog.Products() {
		if strings.Contains(folded, tokenize.Fold(p.ID)) {
			return p.ID, true
		}
	}

	words := tokenize.Words(utterance)
	for _, w := range words {
		n, ok := ordinals[w]
		if !ok {
			continue
		}
		if n <= len(listed) {
			return listed[n-1], true
		}
		break
	}

	for _, w := range words {
		if !pronouns[w] {
			continue
		}
		if mentioned != "" {
			return mentioned, true
		}
		if len(listed) > 0 {
			return listed[0], true
		}
		break
	}

	return "", false
}

// Clarify builds a "which one" question with candidate cards.
func (r *Resolver) Clarify(ctx context.Context, utterance string, sess *domain.Session, k int) domain.UIPayload {
	if k <= 0 || k > ClarifyLimit {
		k = ClarifyLimit
	}

	query := strings.TrimSpace(utterance)
	if query == "" {
		query = sess.LastQuery
	}
	if query == "" {
		query = defaultClarifyQuery
	}

	seen := make(map[string]bool)
	cards := make([]domain.ProductCard, 0, k)
	for _, hit := range r.catalog.Search(ctx, query, k) {
		if seen[hit.ProductID] {
			continue
		}
		p, ok := r.catalog.Get(hit.ProductID)
		if !ok {
			continue
		}
		seen[hit.ProductID] = true
		cards = append(cards, Card(p))
	}

	return domain.UIPayload{
		Title: "Which one did you mean?",
		Cards: cards,
	}
}

// Card renders a product as a UI card.
func Card(p domain.Product) domain.ProductCard {
	return domain.ProductCard{
		ProductID: p.ID,
		Title:     p.Title,
		Subtitle:  p.Description,
		Price:     p.Price,
	}
}

// ParseSize extracts a size from phrases like "size L", "size: xl" or "in m".
func ParseSize(utterance string) (domain.Size, bool) {
	m := sizePattern.FindStringSubmatch(utterance)
	if m == nil {
		return "", false
	}
	return domain.NormalizeSize(m[1])
}

// ParseQuantity returns the first count in the utterance, or 1. A count is a
// word of digits, optionally with a unit ("2pcs", "3x") or an "x" prefix
// ("x3"). Digits embedded in words such as "p02" are ignored.
func ParseQuantity(utterance string) int {
	for _, w := range strings.FieldsFunc(utterance, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == '.' || r == '!' || r == '?'
	}) {
		m := quantityPattern.FindStringSubmatch(w)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 1
}
