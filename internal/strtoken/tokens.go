package strtoken

import "strings"

// Tokens splits s on whitespace and keeps lowercased tokens longer than
// minLen runes. Punctuation is left attached, matching how the relevance
// heuristic compares stored memory content against user queries.
func Tokens(s string, minLen int) []string {
	var tokens []string
	for _, field := range strings.Fields(strings.ToLower(s)) {
		if len([]rune(field)) > minLen {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// Intersect returns the elements of a that also occur in b.
func Intersect(a, b []string) []string {
	m := make(map[string]struct{}, len(b))
	for _, s := range b {
		m[s] = struct{}{}
	}

	var res []string
	for _, s := range a {
		if _, ok := m[s]; ok {
			res = append(res, s)
		}
	}

	return res
}

// OverlapRatio is |a ∩ b| / max(|a|, 1).
func OverlapRatio(a, b []string) float64 {
	denom := len(a)
	if denom < 1 {
		denom = 1
	}
	return float64(len(Intersect(a, b))) / float64(denom)
}
