package guidance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sos/internal/models"
)

func TestFor_NonEmptyForEveryCategory(t *testing.T) {
	for _, c := range models.Categories() {
		t.Run(string(c), func(t *testing.T) {
			steps := For(c)
			assert.NotEmpty(t, steps)
			if !HasDedicated(c) {
				assert.Equal(t, Fallback(), steps)
			}
		})
	}
}

func TestFor_Fallback(t *testing.T) {
	expected := []string{"Call emergency services immediately", "Stay calm", "Follow official instructions"}
	assert.Equal(t, expected, For(models.CategoryUnknown))
	assert.Equal(t, expected, For(models.CategoryAccident))
	assert.Equal(t, expected, For(models.Category("plumbing")))
}

func TestFor_Dedicated(t *testing.T) {
	assert.Equal(t, "Evacuate the area immediately", For(models.CategoryFire)[0])
	assert.Equal(t, "Check if the person is responsive", For(models.CategoryMedical)[0])
	assert.Equal(t, "Ensure your safety first", For(models.CategoryPolice)[0])
	assert.Len(t, For(models.CategoryNaturalDisaster), 5)
}

func TestFor_ReturnsCopy(t *testing.T) {
	steps := For(models.CategoryUnknown)
	steps[0] = "mutated"
	assert.Equal(t, "Call emergency services immediately", For(models.CategoryUnknown)[0])
	assert.Equal(t, "Call emergency services immediately", Fallback()[0])

	fb := Fallback()
	fb[1] = "mutated"
	assert.Equal(t, "Stay calm", Fallback()[1])
	assert.Equal(t, "Stay calm", For(models.CategoryAccident)[1])
}

func TestHasDedicated(t *testing.T) {
	for _, c := range models.Categories() {
		want := c != models.CategoryAccident && c != models.CategoryUnknown
		assert.Equal(t, want, HasDedicated(c), string(c))
	}
	assert.False(t, HasDedicated(models.Category("plumbing")))
}

func TestSearch(t *testing.T) {
	assert.Len(t, Search(""), len(Guides()))

	got := Search("BURN")
	require.Len(t, got, 1)
	assert.Equal(t, "burns", got[0].ID)

	critical := Search("critical")
	assert.Len(t, critical, 2)

	assert.Empty(t, Search("zebra"))
}

func TestGuideByID(t *testing.T) {
	g, ok := GuideByID("cpr")
	require.True(t, ok)
	assert.Equal(t, "CPR Basics", g.Title)
	assert.NotEmpty(t, g.Warnings)

	g.Steps[0] = "mutated"
	again, _ := GuideByID("cpr")
	assert.NotEqual(t, "mutated", again.Steps[0])

	_, ok = GuideByID("nope")
	assert.False(t, ok)
}
