package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write categories file: %v", err)
	}
	return path
}

func TestLoadVocabulary(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		v, err := LoadVocabulary("")
		if err != nil {
			t.Fatalf("LoadVocabulary() error = %v", err)
		}
		if !v.Contains("Housing") || !slices.Contains(v.Essential(), "Housing") {
			t.Errorf("expected default vocabulary, got %v", v.Names())
		}
	})

	t.Run("file overrides categories and essentials", func(t *testing.T) {
		path := writeFile(t, `
categories = ["Home", "Food", "Fun"]
essential  = ["Home"]
`)
		v, err := LoadVocabulary(path)
		if err != nil {
			t.Fatalf("LoadVocabulary() error = %v", err)
		}
		if got := v.Names(); !slices.Equal(got, []string{"Home", "Food", "Fun"}) {
			t.Errorf("Names() = %v", got)
		}
		if got := v.Essential(); !slices.Equal(got, []string{"Home"}) {
			t.Errorf("Essential() = %v", got)
		}
		if v.Contains("Housing") {
			t.Error("default category leaked into custom vocabulary")
		}
	})

	tests := []struct {
		name    string
		content string
	}{
		{name: "no categories", content: `essential = []`},
		{name: "unknown key", content: "categories = [\"A\"]\ncolour = \"red\""},
		{name: "undeclared essential", content: "categories = [\"A\"]\nessential = [\"B\"]"},
		{name: "malformed toml", content: `categories = [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadVocabulary(writeFile(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
