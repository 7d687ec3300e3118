package engine

import "regexp"

var citationPattern = regexp.MustCompile(`\[memory:([^\]]+)\]`)

// ExtractCitations returns the memory ids cited in content, deduplicated,
// in order of first appearance.
func ExtractCitations(content string) []string {
	matches := citationPattern.FindAllStringSubmatch(content, -1)

	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		id := match[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids
}
