// Package guidance holds the static response steps shown for each
// emergency category and the first-aid reference library.
package guidance

import "github.com/joescharf/sos/internal/models"

var fallback = []string{
	"Call emergency services immediately",
	"Stay calm",
	"Follow official instructions",
}

// Fallback returns the steps used for any category without a dedicated
// guide.
func Fallback() []string {
	return append([]string(nil), fallback...)
}

// For returns the ordered response steps for a category. The result is
// never empty and is a fresh copy the caller may modify.
func For(c models.Category) []string {
	var steps []string
	switch c {
	case models.CategoryMedical:
		steps = []string{
			"Check if the person is responsive",
			"Call emergency services",
			"Check breathing and pulse",
			"Apply first aid if trained",
			"Keep the person calm and comfortable",
		}
	case models.CategoryFire:
		steps = []string{
			"Evacuate the area immediately",
			"Call fire services",
			"Do not use elevators",
			"Stay low to avoid smoke",
			"Use fire extinguisher only if safe",
		}
	case models.CategoryPolice:
		steps = []string{
			"Ensure your safety first",
			"Call law enforcement",
			"Do not confront the perpetrator",
			"Note important details",
			"Help others get to safety",
		}
	case models.CategoryNaturalDisaster:
		steps = []string{
			"Move to higher ground (floods) or open areas (earthquakes)",
			"Stay away from power lines and buildings",
			"Listen to emergency broadcasts",
			"Help others if safe to do so",
			"Wait for official instructions",
		}
	default:
		steps = fallback
	}
	return append([]string(nil), steps...)
}

// HasDedicated reports whether c has its own guide rather than the fallback.
func HasDedicated(c models.Category) bool {
	switch c {
	case models.CategoryMedical, models.CategoryFire, models.CategoryPolice, models.CategoryNaturalDisaster:
		return true
	default:
		return false
	}
}
