package lexicon

import (
	"regexp"
	"strconv"
	"strings"

	"lakeguide/internal/types"
)

// Classifier extracts structured attributes from free-text qualifier
// phrases using the lexicon tables.
type Classifier struct {
	tables *Tables
}

// NewClassifier builds a classifier over the given tables.
func NewClassifier(tables *Tables) *Classifier {
	return &Classifier{tables: tables}
}

var (
	authorRe = regexp.MustCompile(`(?i)\b(?:photo by|author|by)\s+(\S+)`)
	dateRe   = regexp.MustCompile(`\b(\d{1,2}\.\d{1,2}\.\d{4})\b`)
	yearRe   = regexp.MustCompile(`\b(\d{4})\b`)
)

// Classify merges all phrases into one attribute mapping. Later phrases win
// on key collision. Phrases with no keyword hit are returned as unmatched
// so callers can tell an unsatisfiable request from an empty result.
func (c *Classifier) Classify(phrases []string) (types.Attributes, []string) {
	attrs := types.Attributes{}
	var unmatched []string

	for _, phrase := range phrases {
		if !c.classifyPhrase(phrase, attrs) {
			if p := strings.TrimSpace(phrase); p != "" {
				unmatched = append(unmatched, p)
			}
		}
	}
	if len(attrs) == 0 {
		attrs = nil
	}
	return attrs, unmatched
}

// classifyPhrase tests one phrase against every attribute table and records
// each hit. Returns false when nothing in the phrase was recognized.
func (c *Classifier) classifyPhrase(phrase string, attrs types.Attributes) bool {
	key := normKey(phrase)
	if key == "" {
		return true // empty phrases contribute nothing and are not errors
	}
	hit := false

	lookup := func(table map[string]string, attrKey string) {
		if v, ok := table[key]; ok {
			attrs[attrKey] = v
			hit = true
			return
		}
		for _, tok := range strings.Fields(key) {
			if v, ok := table[tok]; ok {
				attrs[attrKey] = v
				hit = true
				return
			}
		}
	}

	lookup(c.tables.seasons, types.AttrSeason)
	lookup(c.tables.habitats, types.AttrHabitat)
	lookup(c.tables.cloudiness, types.AttrCloudiness)
	lookup(c.tables.faunaTypes, types.AttrFaunaType)
	lookup(c.tables.floraTypes, types.AttrFloraType)

	if c.tables.fruiting[key] || anyTokenIn(key, c.tables.fruiting) {
		attrs[types.AttrFruitsPresent] = "true"
		hit = true
	}
	if c.tables.flowering[key] || anyTokenIn(key, c.tables.flowering) {
		attrs[types.AttrFlowering] = "true"
		hit = true
	}

	if m := authorRe.FindStringSubmatch(phrase); m != nil {
		attrs[types.AttrAuthor] = m[1]
		hit = true
	}
	if m := dateRe.FindStringSubmatch(phrase); m != nil {
		attrs[types.AttrDate] = m[1]
		hit = true
	} else if m := yearRe.FindStringSubmatch(phrase); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil && y >= 1900 && y <= 2099 {
			attrs[types.AttrDate] = m[1]
			hit = true
		}
	}

	return hit
}

func anyTokenIn(key string, set map[string]bool) bool {
	for _, tok := range strings.Fields(key) {
		if set[tok] {
			return true
		}
	}
	return false
}
