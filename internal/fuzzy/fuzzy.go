// Package fuzzy scores how well a free-text document name matches a known
// title. The score is a weighted ratio on a 0..1 scale: plain edit-distance
// similarity, token-sorted similarity (word order is noise in titles), and a
// containment bonus (a name that appears verbatim inside a title is almost
// certainly that title) are combined by taking the best weighted component.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

const (
	tokenSortWeight   = 0.95
	containmentWeight = 0.90
)

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func tokenSorted(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// Score returns the weighted-ratio similarity of a and b in [0, 1].
func Score(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	best := levenshtein.Similarity(a, b, nil)

	if s := tokenSortWeight * levenshtein.Similarity(tokenSorted(a), tokenSorted(b), nil); s > best {
		best = s
	}

	if strings.Contains(b, a) || strings.Contains(a, b) {
		if containmentWeight > best {
			best = containmentWeight
		}
	}

	return best
}

// BestMatch returns the candidate scoring highest against name. ok is false
// when candidates is empty. Ties keep the earliest candidate.
func BestMatch(name string, candidates []string) (match string, score float64, ok bool) {
	for _, c := range candidates {
		s := Score(name, c)
		if !ok || s > score {
			match, score, ok = c, s, true
		}
	}
	return match, score, ok
}
