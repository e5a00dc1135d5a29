package core

import "strings"

// DefaultCategories is the category vocabulary used when no file overrides it.
var DefaultCategories = []string{
	"Housing",
	"Transportation",
	"Food",
	"Utilities",
	"Insurance",
	"Healthcare",
	"Savings",
	"Debt",
	"Entertainment",
	"Personal",
	"Education",
	"Gifts",
	"Travel",
	"Miscellaneous",
}

// DefaultEssentialCategories are locked by default when sliders are seeded.
var DefaultEssentialCategories = []string{"Housing", "Utilities", "Insurance"}

// Vocabulary is the set of allowed category names. Lookups by exact name
// follow node identity; the folded lookup backs the reserved-name check.
type Vocabulary struct {
	names     []string
	exact     map[string]struct{}
	folded    map[string]struct{}
	essential []string
}

func NewVocabulary(names, essential []string) *Vocabulary {
	v := &Vocabulary{
		exact:  make(map[string]struct{}, len(names)),
		folded: make(map[string]struct{}, len(names)),
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := v.exact[n]; ok {
			continue
		}
		v.exact[n] = struct{}{}
		v.folded[strings.ToLower(n)] = struct{}{}
		v.names = append(v.names, n)
	}
	for _, e := range essential {
		if v.Contains(e) {
			v.essential = append(v.essential, e)
		}
	}
	return v
}

func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(DefaultCategories, DefaultEssentialCategories)
}

func (v *Vocabulary) Contains(name string) bool {
	_, ok := v.exact[name]
	return ok
}

func (v *Vocabulary) ContainsFold(name string) bool {
	_, ok := v.folded[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Names returns the categories in declaration order.
func (v *Vocabulary) Names() []string {
	return append([]string(nil), v.names...)
}

func (v *Vocabulary) Essential() []string {
	return append([]string(nil), v.essential...)
}
