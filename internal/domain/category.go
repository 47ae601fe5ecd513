package domain

import "strings"

// Category is a fixed content bucket, e.g. a provider/plan grouping.
// The enumeration is admin-defined in configuration and never changes at
// runtime.
type Category struct {
	Key   string // stable identifier, doubles as the storage directory name
	Label string // human-readable label shown in menus
}

// Provider returns the provider prefix of the category key, e.g. "dtac" for
// "dtac_game_plan". Keys without an underscore are their own provider.
func (c Category) Provider() string {
	if i := strings.IndexByte(c.Key, '_'); i > 0 {
		return c.Key[:i]
	}
	return c.Key
}

// FindCategory looks up a category by key in a configured enumeration.
func FindCategory(categories []Category, key string) (Category, bool) {
	for _, c := range categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

// Providers returns the distinct provider prefixes in enumeration order.
func Providers(categories []Category) []string {
	seen := make(map[string]bool, len(categories))
	var out []string
	for _, c := range categories {
		p := c.Provider()
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
