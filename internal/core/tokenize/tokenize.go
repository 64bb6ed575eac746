// Package tokenize splits free text into case-folded word tokens.
package tokenize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Fold case-folds s. A Caser is stateful, so one is built per call.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Words returns the folded letter/digit runs of s, in order.
func Words(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ContainsSequence reports whether seq appears contiguously in words.
func ContainsSequence(words, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(words) {
		return false
	}
	for i := 0; i+len(seq) <= len(words); i++ {
		match := true
		for j := range seq {
			if words[i+j] != seq[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
