// Package matcher resolves spoken or typed product names against the
// shop catalog, including common Hinglish names for staples.
package matcher

import "strings"

// Named is anything with a catalog name.
type Named interface {
	CatalogName() string
}

// Dictionary maps Hinglish words to the English word used in item names.
type Dictionary map[string]string

// DefaultDictionary covers the staples shopkeepers name most often.
func DefaultDictionary() Dictionary {
	return Dictionary{
		"cheeni": "sugar",
		"doodh":  "milk",
		"tel":    "oil",
		"chawal": "rice",
		"sabun":  "soap",
		"atta":   "atta",
		"dahi":   "curd",
		"namak":  "salt",
	}
}

// Matcher compares queries against item names.
type Matcher struct {
	dictionary Dictionary
}

// New returns a matcher using dict, or DefaultDictionary when nil.
func New(dict Dictionary) *Matcher {
	if dict == nil {
		dict = DefaultDictionary()
	}
	normalized := make(Dictionary, len(dict))
	for key, value := range dict {
		key = normalize(key)
		value = normalize(value)
		if key == "" || value == "" {
			continue
		}
		normalized[key] = value
	}
	return &Matcher{dictionary: normalized}
}

// Match reports whether query refers to the item called name.
//
// Either string may contain the other, or the query may contain a
// dictionary word whose translation appears in the item name.
func (m *Matcher) Match(query, name string) bool {
	q := normalize(query)
	item := normalize(name)
	if q == "" || item == "" {
		return false
	}
	if strings.Contains(item, q) || strings.Contains(q, item) {
		return true
	}
	for key, value := range m.dictionary {
		if strings.Contains(q, key) && strings.Contains(item, value) {
			return true
		}
	}
	return false
}

// FindFirst returns the index of the first item matching query, or -1.
func FindFirst[T Named](m *Matcher, query string, items []T) int {
	for i, item := range items {
		if m.Match(query, item.CatalogName()) {
			return i
		}
	}
	return -1
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
