package env

import (
	"path/filepath"
	"strings"
)

// MergePathList rebuilds a PATH list: additions come first in their given
// order, followed by every existing entry that is neither a duplicate of
// an addition nor a stale directory under root. Unrelated entries keep
// their original order.
func MergePathList(existing, additions []string, root string) []string {
	seen := make(map[string]bool, len(additions))
	merged := make([]string, 0, len(existing)+len(additions))

	for _, dir := range additions {
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		merged = append(merged, dir)
	}

	for _, dir := range existing {
		if dir == "" || seen[dir] {
			continue
		}
		if underRoot(dir, root) {
			continue
		}
		seen[dir] = true
		merged = append(merged, dir)
	}

	return merged
}

// underRoot reports whether dir lies inside root.
func underRoot(dir, root string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
