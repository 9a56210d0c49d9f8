package fs

import (
	"fmt"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// Expand resolves patterns into a list of regular files. Patterns may use
// "**" to match across directories. A plain path that names an existing
// file is kept as given. Each pattern's matches are sorted; a path matched
// by more than one pattern is listed once, at its first position. A
// pattern that matches nothing is an error, so a typo never silently drops
// a document from an audit.
func Expand(patterns []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil {
			if info.IsDir() {
				return nil, fmt.Errorf("fs: %s is a directory; use %s/** to include its files", pattern, pattern)
			}
			add(pattern)
			continue
		}

		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("fs: invalid glob pattern: %s", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("fs: %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("fs: %s: %w", pattern, ErrNoMatch)
		}
		slices.Sort(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return paths, nil
}
