package rule

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/praetorian-inc/fdsec/pkg/types"
)

// CategoryPrefix marks a selector that matches signature categories
// instead of IDs, e.g. "category:ransomware".
const CategoryPrefix = "category:"

// FilterConfig selects signatures. Each entry is a regex over the
// signature ID, or a CategoryPrefix selector compared case-insensitively
// against the signature's categories.
type FilterConfig struct {
	Include []string
	Exclude []string
}

// ParsePatterns splits a comma-separated flag value, dropping blanks.
func ParsePatterns(patterns string) []string {
	out := []string{}
	for _, p := range strings.Split(patterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type selector func(*types.Signature) bool

func compileSelectors(patterns []string) ([]selector, error) {
	sels := make([]selector, 0, len(patterns))
	for _, p := range patterns {
		if cat, ok := strings.CutPrefix(p, CategoryPrefix); ok {
			sels = append(sels, func(s *types.Signature) bool {
				return slices.ContainsFunc(s.Categories, func(c string) bool {
					return strings.EqualFold(c, cat)
				})
			})
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", p, err)
		}
		sels = append(sels, func(s *types.Signature) bool { return re.MatchString(s.ID) })
	}
	return sels, nil
}

// Filter keeps signatures matching any include selector (all when Include
// is empty), then drops those matching any exclude selector.
func Filter(sigs []*types.Signature, config FilterConfig) ([]*types.Signature, error) {
	include, err := compileSelectors(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileSelectors(config.Exclude)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return sigs, nil
	}

	out := make([]*types.Signature, 0, len(sigs))
	for _, s := range sigs {
		if len(include) > 0 && !anyMatch(include, s) {
			continue
		}
		if anyMatch(exclude, s) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func anyMatch(sels []selector, s *types.Signature) bool {
	for _, sel := range sels {
		if sel(s) {
			return true
		}
	}
	return false
}
