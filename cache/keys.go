package cache

import (
	"fmt"
	"strings"
)

type keyKind uint8

const (
	kindDefault keyKind = iota
	kindSearch
	kindCategory
)

// Key identifies one cached feed. The zero value is the default feed.
type Key struct {
	kind  keyKind
	value string
}

// DefaultKey is the unfiltered feed.
var DefaultKey = Key{}

// SearchKey returns the key for a free-text arXiv search. Queries that differ
// only in case or surrounding whitespace share an entry.
func SearchKey(query string) Key {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return DefaultKey
	}
	return Key{kind: kindSearch, value: q}
}

// CategoryKey returns the key for a category alias such as "nlp".
func CategoryKey(alias string) (Key, error) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if _, ok := categoryMap[alias]; !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownCategory, alias)
	}
	return Key{kind: kindCategory, value: alias}, nil
}

// IsDefault reports whether k is the unfiltered feed.
func (k Key) IsDefault() bool {
	return k.kind == kindDefault
}

// Search returns the normalized search query, or "" for other keys.
func (k Key) Search() string {
	if k.kind != kindSearch {
		return ""
	}
	return k.value
}

// Category returns the arXiv category for a category key, or "" for other keys.
func (k Key) Category() string {
	if k.kind != kindCategory {
		return ""
	}
	return categoryMap[k.value]
}

func (k Key) String() string {
	switch k.kind {
	case kindSearch:
		return "search:" + k.value
	case kindCategory:
		return "category:" + k.value
	default:
		return "default"
	}
}

// categoryMap resolves client aliases to the arXiv category fetched for them.
var categoryMap = map[string]string{
	"ml":       "cs.LG",
	"nlp":      "cs.CL",
	"vision":   "cs.CV",
	"ai":       "cs.AI",
	"robotics": "cs.RO",
	"neural":   "cs.NE",
}

// Category is a browsable category advertised to clients.
type Category struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Arxiv []string `json:"arxiv"`
}

// Categories returns the categories listed to clients, in display order.
func Categories() []Category {
	return []Category{
		{ID: "ml", Name: "Machine Learning", Arxiv: []string{"cs.LG", "stat.ML"}},
		{ID: "nlp", Name: "NLP", Arxiv: []string{"cs.CL"}},
		{ID: "vision", Name: "Computer Vision", Arxiv: []string{"cs.CV"}},
		{ID: "ai", Name: "AI General", Arxiv: []string{"cs.AI"}},
		{ID: "neural", Name: "Neural Networks", Arxiv: []string{"cs.NE"}},
	}
}
