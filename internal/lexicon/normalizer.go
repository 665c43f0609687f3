package lexicon

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// DefaultFuzzyThreshold is the 0-100 acceptance score for canonical-name
// matching. Below it the match is rejected and the caller must ask the user
// instead of guessing.
const DefaultFuzzyThreshold = 65

// Normalizer maps free-text mentions to canonical categories and object
// names. Safe for concurrent use; the tables are never mutated.
type Normalizer struct {
	tables    *Tables
	threshold int
}

// NewNormalizer builds a normalizer over the given tables.
func NewNormalizer(tables *Tables, threshold int) *Normalizer {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultFuzzyThreshold
	}
	return &Normalizer{tables: tables, threshold: threshold}
}

// Normalize maps a raw name to its canonical category. Unknown names come
// back capitalized rather than as an error; the backend decides whether an
// unknown literal is useful.
func (n *Normalizer) Normalize(raw string) string {
	if canon, ok := n.tables.categories[normKey(raw)]; ok {
		return canon
	}
	return capitalize(raw)
}

// ExpandGroup resolves a group alias ("protected areas") to its member
// categories. Non-group names expand to their single normalized form.
func (n *Normalizer) ExpandGroup(raw string) []string {
	if members, ok := n.tables.groups[normKey(raw)]; ok {
		return append([]string(nil), members...)
	}
	return []string{n.Normalize(raw)}
}

// ShouldForward reports whether a name is specific enough to pass to the
// search backend as a literal filter. Generic category words would only
// over-constrain the query.
func (n *Normalizer) ShouldForward(raw string) bool {
	key := normKey(raw)
	if key == "" || n.tables.generic[key] {
		return false
	}
	if _, isCategory := n.tables.categories[key]; isCategory {
		return false
	}
	return true
}

// MatchCanonical resolves a raw mention to an exact canonical object name.
// Stage one is normalized equality; stage two scores every canonical name
// with the max of a plain edit-distance ratio and a token-order-invariant
// ratio, accepting the best candidate only at or above the threshold.
// Ties keep the first-seen candidate. No confident match returns ok=false.
func (n *Normalizer) MatchCanonical(raw string) (string, bool) {
	key := normKey(raw)
	if key == "" {
		return "", false
	}
	if canon, ok := n.tables.canonicalIndex[key]; ok {
		return canon, true
	}

	best := ""
	bestScore := 0
	for _, candidate := range n.tables.canonical {
		candKey := normKey(candidate)
		score := fuzzy.Ratio(key, candKey)
		if ts := fuzzy.TokenSortRatio(key, candKey); ts > score {
			score = ts
		}
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	if bestScore >= n.threshold {
		return best, true
	}
	return "", false
}

// CanonicalNames returns the canonical object list in first-seen order.
func (n *Normalizer) CanonicalNames() []string {
	return append([]string(nil), n.tables.canonical...)
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
