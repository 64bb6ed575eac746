package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shopassist/internal/core/catalog"
	"github.com/rl1809/shopassist/internal/core/domain"
)

func newSession(recommended ...string) *domain.Session {
	s := domain.NewSession("s1", time.Now())
	s.LastRecommended = recommended
	return s
}

func newResolver() *Resolver {
	return New(catalog.New(catalog.DemoProducts()))
}

func TestResolve_ExplicitID(t *testing.T) {
	r := newResolver()
	sess := newSession("p01", "p02", "p03")

	id, ok := r.Resolve("add P05 to my cart", sess)

	require.True(t, ok)
	assert.Equal(t, "p05", id)
	assert.Equal(t, "p05", sess.LastMentioned)
}

func TestResolve_Ordinals(t *testing.T) {
	r := newResolver()

	tests := []struct {
		name      string
		utterance string
		want      string
		ok        bool
	}{
		{"word", "the second one", "p02", true},
		{"numeric", "give me the 3rd", "p03", true},
		{"first", "first please", "p01", true},
		{"out of range", "the fourth one", "", false},
		{"fifth out of range", "5th", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newSession("p01", "p02", "p03")
			id, ok := r.Resolve(tt.utterance, sess)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, id)
			if !tt.ok {
				assert.Empty(t, sess.LastMentioned)
			}
		})
	}
}

func TestResolve_PronounPrefersLastMentioned(t *testing.T) {
	r := newResolver()
	sess := newSession("p01", "p02", "p03")

	id, ok := r.Resolve("add it to cart", sess)
	require.True(t, ok)
	assert.Equal(t, "p01", id)

	_, ok = r.Resolve("the second one", sess)
	require.True(t, ok)

	id, ok = r.Resolve("does that come in blue", sess)
	require.True(t, ok)
	assert.Equal(t, "p02", id)
}

func TestResolve_NoMemory(t *testing.T) {
	r := newResolver()
	sess := newSession()

	_, ok := r.Resolve("add it to cart", sess)
	assert.False(t, ok)

	_, ok = r.Resolve("hello there", newSession("p01"))
	assert.False(t, ok)
}

func TestResolveAmong(t *testing.T) {
	r := newResolver()

	id, ok := r.ResolveAmong("the second", []string{"p04", "p05"})
	require.True(t, ok)
	assert.Equal(t, "p05", id)
}

func TestClarify(t *testing.T) {
	r := newResolver()
	sess := newSession()

	ui := r.Clarify(context.Background(), "add it", sess, 10)

	assert.Equal(t, "Which one did you mean?", ui.Title)
	require.Len(t, ui.Cards, ClarifyLimit)
	assert.Equal(t, "p01", ui.Cards[0].ProductID)
	assert.Equal(t, "Black Cotton Shirt", ui.Cards[0].Title)

	seen := map[string]bool{}
	for _, c := range ui.Cards {
		assert.False(t, seen[c.ProductID], "duplicate card %s", c.ProductID)
		seen[c.ProductID] = true
	}
}

func TestClarify_EmptyUtterance(t *testing.T) {
	r := newResolver()
	ui := r.Clarify(context.Background(), "  ", newSession(), 2)
	assert.Len(t, ui.Cards, 2)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Size
		ok   bool
	}{
		{"add p01 size L", domain.SizeL, true},
		{"size: xl please", domain.SizeXL, true},
		{"is it available in m", domain.SizeM, true},
		{"size=xxl", domain.SizeXXL, true},
		{"add it to cart", "", false},
		{"in stock?", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSize(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseQuantity(t *testing.T) {
	assert.Equal(t, 1, ParseQuantity("add p02 to cart"))
	assert.Equal(t, 2, ParseQuantity("add 2 of p02"))
	assert.Equal(t, 3, ParseQuantity("buy p01, 3 please"))
	assert.Equal(t, 0, ParseQuantity("add 0 of them"))
	assert.Equal(t, 2, ParseQuantity("add 2pcs of p01"))
	assert.Equal(t, 3, ParseQuantity("add p01 x3"))
	assert.Equal(t, 4, ParseQuantity("4x p09 please"))
	assert.Equal(t, 5, ParseQuantity("add 5 pieces"))
	assert.Equal(t, 1, ParseQuantity("size xl"))
}
