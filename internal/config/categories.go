package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"budgetflow/internal/core"
)

// CategoriesFile is the TOML shape of CATEGORIES_FILE:
//
//	categories = ["Housing", "Food", "Fun"]
//	essential  = ["Housing"]
type CategoriesFile struct {
	Categories []string `toml:"categories"`
	Essential  []string `toml:"essential"`
}

// LoadVocabulary reads the category vocabulary. An empty path yields the
// built-in defaults.
func LoadVocabulary(path string) (*core.Vocabulary, error) {
	if path == "" {
		return core.DefaultVocabulary(), nil
	}
	var f CategoriesFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode %s: unknown keys %v", path, undecoded)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("decode %s: no categories declared", path)
	}
	for _, e := range f.Essential {
		if !containsString(f.Categories, e) {
			return nil, fmt.Errorf("decode %s: essential category %q is not declared", path, e)
		}
	}
	return core.NewVocabulary(f.Categories, f.Essential), nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
