package models

import "strings"

// Category is the fixed emergency classification.
type Category string

const (
	CategoryMedical         Category = "medical"
	CategoryFire            Category = "fire"
	CategoryPolice          Category = "police"
	CategoryNaturalDisaster Category = "natural_disaster"
	CategoryAccident        Category = "accident"
	CategoryUnknown         Category = "unknown"
)

// PriorityOrder is the tie-break order used when text matches several
// categories. Medical comes first.
var PriorityOrder = []Category{
	CategoryMedical,
	CategoryFire,
	CategoryPolice,
	CategoryNaturalDisaster,
	CategoryAccident,
}

// Categories returns every category including Unknown.
func Categories() []Category {
	return append(append([]Category{}, PriorityOrder...), CategoryUnknown)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryMedical, CategoryFire, CategoryPolice,
		CategoryNaturalDisaster, CategoryAccident, CategoryUnknown:
		return true
	}
	return false
}

// Label returns a human-readable name.
func (c Category) Label() string {
	switch c {
	case CategoryMedical:
		return "Medical"
	case CategoryFire:
		return "Fire"
	case CategoryPolice:
		return "Police"
	case CategoryNaturalDisaster:
		return "Natural Disaster"
	case CategoryAccident:
		return "Accident"
	case CategoryUnknown:
		return "Unknown"
	}
	return string(c)
}

func (c Category) String() string { return string(c) }

// ParseCategory maps a UI selection or free-form hint to a Category.
// Matching is case-insensitive and accepts a few aliases ("crime",
// "disaster"). ok is false when s names no category.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch key {
	case "medical", "ambulance":
		return CategoryMedical, true
	case "fire":
		return CategoryFire, true
	case "police", "crime":
		return CategoryPolice, true
	case "natural_disaster", "disaster", "naturaldisaster":
		return CategoryNaturalDisaster, true
	case "accident":
		return CategoryAccident, true
	case "unknown":
		return CategoryUnknown, true
	}
	return "", false
}
