// Package intent classifies an utterance with ordered keyword rules.
package intent

import (
	"strings"

	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/core/tokenize"
)

type rule struct {
	intent   domain.Intent
	keywords []string
}

// Earlier rules win when an utterance matches several. A trailing * matches
// any word with that prefix; other keywords match whole words.
var rules = []rule{
	{domain.IntentBrowse, []string{"show", "find", "suggest*", "recommend*"}},
	{domain.IntentAddToCart, []string{"add", "cart", "buy*"}},
	{domain.IntentInventory, []string{"size*", "avail*", "inventory", "stock"}},
	{domain.IntentCheckout, []string{"checkout", "pay*", "purchase*"}},
	{domain.IntentProductDetails, []string{"detail*", "does it", "is it"}},
}

// Classify returns the intent of the first matching rule, or IntentOther.
func Classify(utterance string) domain.Intent {
	words := tokenize.Words(utterance)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if matches(words, kw) {
				return r.intent
			}
		}
	}
	return domain.IntentOther
}

func matches(words []string, keyword string) bool {
	seq := strings.Fields(keyword)
	if len(seq) > 1 {
		return tokenize.ContainsSequence(words, seq)
	}
	prefix, isPrefix := strings.CutSuffix(keyword, "*")
	for _, w := range words {
		if w == keyword || (isPrefix && strings.HasPrefix(w, prefix)) {
			return true
		}
	}
	return false
}
