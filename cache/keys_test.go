package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchKey(t *testing.T) {
	k := SearchKey("  Mixture of EXPERTS ")
	assert.Equal(t, "mixture of experts", k.Search())
	assert.Equal(t, "search:mixture of experts", k.String())
	assert.Equal(t, k, SearchKey("mixture of experts"))
	assert.Empty(t, k.Category())
	assert.False(t, k.IsDefault())

	assert.True(t, SearchKey("   ").IsDefault())
}

func TestCategoryKey(t *testing.T) {
	tests := []struct {
		alias string
		arxiv string
	}{
		{"ml", "cs.LG"},
		{"nlp", "cs.CL"},
		{"vision", "cs.CV"},
		{"ai", "cs.AI"},
		{"robotics", "cs.RO"},
		{"Neural", "cs.NE"},
	}
	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			k, err := CategoryKey(tt.alias)
			require.NoError(t, err)
			assert.Equal(t, tt.arxiv, k.Category())
			assert.Empty(t, k.Search())
		})
	}

	_, err := CategoryKey("astrophysics")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestDefaultKey(t *testing.T) {
	assert.True(t, DefaultKey.IsDefault())
	assert.Equal(t, "default", DefaultKey.String())
}

func TestCategories(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 5)
	assert.Equal(t, "ml", cats[0].ID)
	assert.Equal(t, []string{"cs.LG", "stat.ML"}, cats[0].Arxiv)
	for _, c := range cats {
		_, err := CategoryKey(c.ID)
		assert.NoError(t, err, "listed category %s must resolve", c.ID)
	}
}
