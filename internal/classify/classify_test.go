package classify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sos/internal/models"
)

func TestKeywordClassifier_Classify(t *testing.T) {
	c := NewDefault()
	ctx := context.Background()

	tests := []struct {
		text     string
		expected models.Category
	}{
		// Single category
		{"there is a fire and smoke", models.CategoryFire},
		{"my friend is unconscious", models.CategoryMedical},
		{"someone stole my bike, robbery in progress", models.CategoryPolice},
		{"the river is about to flood the street", models.CategoryNaturalDisaster},
		{"car crash on the highway", models.CategoryAccident},

		// Case and whitespace
		{"   FLAMES everywhere  ", models.CategoryFire},
		{"EARTHQUAKE", models.CategoryNaturalDisaster},

		// Priority tie-break
		{"he is bleeding and there is a fire", models.CategoryMedical},
		{"fire after the car crash", models.CategoryFire},
		{"heart attack", models.CategoryMedical},
		{"storm caused a collision", models.CategoryNaturalDisaster},
		{"robbery turned into a car crash", models.CategoryPolice},

		// Unknown
		{"", models.CategoryUnknown},
		{"   ", models.CategoryUnknown},
		{"I need help", models.CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Classify(ctx, tt.text))
		})
	}
}

func TestKeywordClassifier_Deterministic(t *testing.T) {
	c := NewDefault()
	ctx := context.Background()

	inputs := []string{"smoke in the kitchen", "Smoke In The Kitchen ", "nothing to see", "bleeding after crash"}
	for _, in := range inputs {
		first := c.Classify(ctx, in)
		for range 10 {
			assert.Equal(t, first, c.Classify(ctx, in))
		}
		assert.Equal(t, first, c.Classify(ctx, Normalize(in)))
	}
}

func TestKeywordClassifier_Matches(t *testing.T) {
	c := NewDefault()

	got := c.Matches("bleeding near the fire after the crash")
	assert.Equal(t, []models.Category{models.CategoryMedical, models.CategoryFire, models.CategoryAccident}, got)
	assert.Empty(t, c.Matches("calm afternoon"))
}

func TestKeywordClassifier_CustomSets(t *testing.T) {
	c := NewKeywordClassifier(KeywordSets{
		models.CategoryFire:    {"  INCENDIO "},
		models.CategoryMedical: {"", "herido"},
	})
	ctx := context.Background()

	assert.Equal(t, models.CategoryFire, c.Classify(ctx, "hay un incendio"))
	assert.Equal(t, models.CategoryMedical, c.Classify(ctx, "incendio, hay un herido"))
	assert.Equal(t, []string{"herido"}, c.Keywords(models.CategoryMedical))
}

func TestParseKeywords(t *testing.T) {
	t.Run("extends defaults", func(t *testing.T) {
		sets, err := ParseKeywords(`
[fire]
keywords = ["incendio"]
`, DefaultKeywords())
		require.NoError(t, err)
		assert.Contains(t, sets[models.CategoryFire], "incendio")
		assert.Contains(t, sets[models.CategoryFire], "smoke")
	})

	t.Run("replace drops defaults", func(t *testing.T) {
		sets, err := ParseKeywords(`
[police]
keywords = ["ladron"]
replace = true
`, DefaultKeywords())
		require.NoError(t, err)
		assert.Equal(t, []string{"ladron"}, sets[models.CategoryPolice])
	})

	t.Run("aliases accepted", func(t *testing.T) {
		sets, err := ParseKeywords(`
[disaster]
keywords = ["sinkhole"]
`, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"sinkhole"}, sets[models.CategoryNaturalDisaster])
	})

	t.Run("unknown section rejected", func(t *testing.T) {
		_, err := ParseKeywords(`
[plumbing]
keywords = ["leak"]
`, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "plumbing")
	})

	t.Run("base not mutated", func(t *testing.T) {
		base := DefaultKeywords()
		n := len(base[models.CategoryFire])
		_, err := ParseKeywords("[fire]\nkeywords = [\"x\"]\n", base)
		require.NoError(t, err)
		assert.Len(t, base[models.CategoryFire], n)
	})
}

func TestLoadKeywordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.toml")
	require.NoError(t, os.WriteFile(path, []byte("[accident]\nkeywords = [\"derailed\"]\n"), 0644))

	sets, err := LoadKeywordFile(path, DefaultKeywords())
	require.NoError(t, err)

	c := NewKeywordClassifier(sets)
	assert.Equal(t, models.CategoryAccident, c.Classify(context.Background(), "the train derailed"))

	_, err = LoadKeywordFile(filepath.Join(t.TempDir(), "missing.toml"), nil)
	assert.Error(t, err)
}
