package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a name and strips all whitespace from it.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.TrimSpace(name)
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// MatchName reports whether name equals any of the names, ignoring case and whitespace.
func MatchName(name string, names []string) bool {
	name = NormalizeName(name)
	for _, n := range names {
		if NormalizeName(n) == name {
			return true
		}
	}
	return false
}

// Closest returns the candidate most similar to name by Jaro-Winkler distance
// along with its similarity, candidates must not be empty.
func Closest(name string, candidates []string) (string, float64) {
	name = NormalizeName(name)

	best := ""
	bestScore := -1.0
	for _, candidate := range candidates {
		score := matchr.JaroWinkler(name, NormalizeName(candidate), false)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best, bestScore
}
