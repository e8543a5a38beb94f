package domain

// MergeIDs returns base with extra appended, deduplicated, preserving
// first-seen order. An id is never rejected as a duplicate and never
// double-counted.
func MergeIDs(base []string, extra ...string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, id := range base {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, id := range extra {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// MergeRegistry merges newly resolved {title → id} pairs into the registry.
// A later resolution with the same title overwrites the id mapped to it
// (rename support); existing entries are never removed. The input registry is
// not mutated.
func MergeRegistry(registry, pairs map[string]string) map[string]string {
	out := make(map[string]string, len(registry)+len(pairs))
	for title, id := range registry {
		out[title] = id
	}
	for title, id := range pairs {
		if title == "" || id == "" {
			continue
		}
		out[title] = id
	}
	return out
}
