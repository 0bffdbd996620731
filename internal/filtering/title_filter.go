package filtering

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// TitleFilter handles title-based filtering using glob patterns
type TitleFilter interface {
	// ShouldInclude determines if a title should be kept based on include/exclude patterns
	// Returns (shouldInclude bool, reason string)
	ShouldInclude(title string, include, exclude []string) (bool, string)
}

// defaultTitleFilter implements title filtering using glob patterns
type defaultTitleFilter struct{}

var _ TitleFilter = (*defaultTitleFilter)(nil)

// NewDefaultTitleFilter creates a new defaultTitleFilter
func NewDefaultTitleFilter() TitleFilter {
	return &defaultTitleFilter{}
}

// CompilePattern validates pattern and returns its case-insensitive matcher
func CompilePattern(pattern string) (glob.Glob, error) {
	// filepath.Match catches malformed classes that glob accepts silently
	if _, err := filepath.Match(pattern, "test"); err != nil {
		return nil, err
	}

	// No separators, so * also matches across '/'
	compiled, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %v", err)
	}
	return compiled, nil
}

func matchPattern(pattern, title string) (bool, error) {
	compiled, err := CompilePattern(pattern)
	if err != nil {
		return false, err
	}
	return compiled.Match(strings.ToLower(title)), nil
}

// ShouldInclude determines if a title should be kept.
// Exclude patterns win over include patterns. With include patterns set a
// title must match one of them; without patterns every title is kept.
func (*defaultTitleFilter) ShouldInclude(title string, include, exclude []string) (bool, string) {
	for _, pattern := range exclude {
		matches, err := matchPattern(pattern, title)
		if err != nil {
			return false, fmt.Sprintf("invalid exclude pattern '%s': %v", pattern, err)
		}
		if matches {
			return false, fmt.Sprintf("excluded by pattern '%s'", pattern)
		}
	}

	if len(include) > 0 {
		for _, pattern := range include {
			matches, err := matchPattern(pattern, title)
			if err != nil {
				return false, fmt.Sprintf("invalid include pattern '%s': %v", pattern, err)
			}
			if matches {
				return true, fmt.Sprintf("included by pattern '%s'", pattern)
			}
		}
		return false, fmt.Sprintf("no match found in include patterns %v", include)
	}

	if len(exclude) > 0 {
		return true, fmt.Sprintf("no match in exclude patterns %v", exclude)
	}
	return true, "no title filters specified"
}
