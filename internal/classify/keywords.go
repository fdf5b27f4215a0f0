package classify

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/joescharf/sos/internal/models"
)

// KeywordSets maps each category to the keywords that select it.
type KeywordSets map[models.Category][]string

// DefaultKeywords returns the built-in keyword sets.
func DefaultKeywords() KeywordSets {
	return KeywordSets{
		models.CategoryMedical: {
			"hurt", "pain", "bleeding", "unconscious", "heart", "breathing",
			"injured", "choking", "seizure", "overdose", "fainted", "stroke",
		},
		models.CategoryFire: {
			"fire", "smoke", "burning", "flames", "explosion", "gas leak",
		},
		models.CategoryPolice: {
			"theft", "attack", "robbery", "violence", "burglar", "shooting",
			"stolen", "assault", "intruder", "kidnap",
		},
		models.CategoryNaturalDisaster: {
			"flood", "earthquake", "storm", "tsunami", "tornado", "hurricane",
			"landslide", "avalanche",
		},
		models.CategoryAccident: {
			"accident", "crash", "collision", "hit by", "wreck", "overturned",
			"fell from", "pileup",
		},
	}
}

// keywordFile is the on-disk shape of a keyword file:
//
//	[medical]
//	keywords = ["bleeding", "unconscious"]
//	replace = false
type keywordFile map[string]struct {
	Keywords []string `toml:"keywords"`
	Replace  bool     `toml:"replace"`
}

// LoadKeywordFile reads a TOML keyword file and merges it over base.
// Sections extend the base set unless replace = true. Unknown section
// names are an error so typos do not silently disable a category.
func LoadKeywordFile(path string, base KeywordSets) (KeywordSets, error) {
	var raw keywordFile
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("decode keyword file %s: %w", path, err)
	}
	return mergeKeywords(raw, base)
}

// ParseKeywords is LoadKeywordFile for in-memory TOML.
func ParseKeywords(data string, base KeywordSets) (KeywordSets, error) {
	var raw keywordFile
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	return mergeKeywords(raw, base)
}

func mergeKeywords(raw keywordFile, base KeywordSets) (KeywordSets, error) {
	out := make(KeywordSets, len(base))
	for cat, words := range base {
		out[cat] = append([]string(nil), words...)
	}
	for name, section := range raw {
		cat, ok := models.ParseCategory(name)
		if !ok || cat == models.CategoryUnknown {
			return nil, fmt.Errorf("unknown category section %q", name)
		}
		if section.Replace {
			out[cat] = nil
		}
		out[cat] = append(out[cat], section.Keywords...)
	}
	return out, nil
}
