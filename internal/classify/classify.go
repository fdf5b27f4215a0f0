// Package classify maps free-text emergency descriptions to a Category.
//
// Every strategy is total: unclassifiable input yields CategoryUnknown and
// no strategy returns an error, so triage never blocks on ambiguous input.
package classify

import (
	"context"
	"strings"

	"github.com/joescharf/sos/internal/models"
)

// Classifier maps a description to a category.
type Classifier interface {
	Classify(ctx context.Context, text string) models.Category
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, text string) models.Category

func (f Func) Classify(ctx context.Context, text string) models.Category { return f(ctx, text) }

// Normalize lowercases and trims text before matching.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// KeywordClassifier matches substrings of the normalized text against
// per-category keyword sets. When several categories match, the one that
// comes first in models.PriorityOrder wins.
type KeywordClassifier struct {
	sets KeywordSets
}

// NewKeywordClassifier creates a classifier over the given keyword sets.
// Keywords are normalized once; empty keywords are dropped.
func NewKeywordClassifier(sets KeywordSets) *KeywordClassifier {
	norm := make(KeywordSets, len(sets))
	for cat, words := range sets {
		for _, w := range words {
			if w = Normalize(w); w != "" {
				norm[cat] = append(norm[cat], w)
			}
		}
	}
	return &KeywordClassifier{sets: norm}
}

// NewDefault returns a keyword classifier over DefaultKeywords.
func NewDefault() *KeywordClassifier {
	return NewKeywordClassifier(DefaultKeywords())
}

// Classify returns the highest-priority category with a keyword contained
// in text, or CategoryUnknown.
func (k *KeywordClassifier) Classify(_ context.Context, text string) models.Category {
	lower := Normalize(text)
	if lower == "" {
		return models.CategoryUnknown
	}
	for _, cat := range models.PriorityOrder {
		if k.matches(cat, lower) {
			return cat
		}
	}
	return models.CategoryUnknown
}

// Matches returns every category whose keywords appear in text, in
// priority order. Used for diagnostics; Classify only needs the first.
func (k *KeywordClassifier) Matches(text string) []models.Category {
	lower := Normalize(text)
	var out []models.Category
	if lower == "" {
		return out
	}
	for _, cat := range models.PriorityOrder {
		if k.matches(cat, lower) {
			out = append(out, cat)
		}
	}
	return out
}

func (k *KeywordClassifier) matches(cat models.Category, lower string) bool {
	for _, kw := range k.sets[cat] {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Keywords returns a copy of the keyword set for cat.
func (k *KeywordClassifier) Keywords(cat models.Category) []string {
	return append([]string(nil), k.sets[cat]...)
}
