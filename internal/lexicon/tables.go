// Package lexicon maps noisy free-text mentions onto the canonical domain
// vocabulary: entity categories, exact species/place names, and the
// structured attributes recognized by the search backend.
//
// All lookup tables are built once at load time and treated as immutable
// afterwards; the optional file watcher swaps in a whole new table set
// rather than mutating a live one.
package lexicon

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultTablesYAML []byte

// tablesFile is the on-disk YAML schema.
type tablesFile struct {
	Categories map[string]string   `yaml:"categories"`    // synonym -> canonical category
	Groups     map[string][]string `yaml:"groups"`        // group alias -> canonical categories
	Generic    []string            `yaml:"generic_words"` // names never forwarded as literal filters
	Canonical  []string            `yaml:"canonical_names"`

	Seasons    map[string]string `yaml:"seasons"`
	Habitats   map[string]string `yaml:"habitats"`
	Cloudiness map[string]string `yaml:"cloudiness"`
	FaunaTypes map[string]string `yaml:"fauna_types"`
	FloraTypes map[string]string `yaml:"flora_types"`
	Fruiting   []string          `yaml:"fruiting_words"`
	Flowering  []string          `yaml:"flowering_words"`
}

// Tables is the immutable lookup set backing the normalizer and classifier.
type Tables struct {
	categories map[string]string
	groups     map[string][]string
	generic    map[string]bool

	// canonical keeps first-seen order for deterministic tie-breaks.
	canonical      []string
	canonicalIndex map[string]string // normalized -> canonical spelling

	seasons    map[string]string
	habitats   map[string]string
	cloudiness map[string]string
	faunaTypes map[string]string
	floraTypes map[string]string
	fruiting   map[string]bool
	flowering  map[string]bool
}

// normKey lowercases and collapses interior whitespace; every table lookup
// goes through it.
func normKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// build converts a parsed file into immutable tables. An empty table set
// fails closed here rather than producing a lexicon that silently matches
// nothing.
func build(f *tablesFile) (*Tables, error) {
	t := &Tables{
		categories:     make(map[string]string, len(f.Categories)),
		groups:         make(map[string][]string, len(f.Groups)),
		generic:        make(map[string]bool, len(f.Generic)),
		canonicalIndex: make(map[string]string, len(f.Canonical)),
		seasons:        lowerMap(f.Seasons),
		habitats:       lowerMap(f.Habitats),
		cloudiness:     lowerMap(f.Cloudiness),
		faunaTypes:     lowerMap(f.FaunaTypes),
		floraTypes:     lowerMap(f.FloraTypes),
		fruiting:       lowerSet(f.Fruiting),
		flowering:      lowerSet(f.Flowering),
	}
	for syn, canon := range f.Categories {
		t.categories[normKey(syn)] = canon
	}
	for alias, members := range f.Groups {
		t.groups[normKey(alias)] = append([]string(nil), members...)
	}
	for _, w := range f.Generic {
		t.generic[normKey(w)] = true
	}
	for _, name := range f.Canonical {
		key := normKey(name)
		if _, dup := t.canonicalIndex[key]; dup {
			continue
		}
		t.canonical = append(t.canonical, name)
		t.canonicalIndex[key] = name
	}

	if len(t.categories) == 0 || len(t.canonical) == 0 {
		return nil, fmt.Errorf("lexicon tables are empty")
	}
	return t, nil
}

func lowerMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[normKey(k)] = v
	}
	return out
}

func lowerSet(words []string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[normKey(w)] = true
	}
	return out
}

// LoadTables parses a YAML tables file.
func LoadTables(data []byte) (*Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse lexicon tables: %w", err)
	}
	return build(&f)
}

// DefaultTables returns the embedded table set.
func DefaultTables() (*Tables, error) {
	return LoadTables(defaultTablesYAML)
}
