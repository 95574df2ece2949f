package urlmatch

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultInternalPatterns lists browser-internal URLs that never count as
// candidates.
var DefaultInternalPatterns = []string{
	"chrome://*",
	"chrome-extension://*",
	"chrome-search://*",
	"chrome-untrusted://*",
	"edge://*",
	"brave://*",
	"about:*",
	"devtools://*",
	"view-source:*",
}

// SchemeFilter excludes internal-scheme URLs from candidate matching.
type SchemeFilter struct {
	patterns []glob.Glob
}

// NewSchemeFilter compiles glob patterns. An empty list uses
// DefaultInternalPatterns.
func NewSchemeFilter(patterns []string) (*SchemeFilter, error) {
	if len(patterns) == 0 {
		patterns = DefaultInternalPatterns
	}
	f := &SchemeFilter{patterns: make([]glob.Glob, 0, len(patterns))}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("internal url pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, g)
	}
	return f, nil
}

// MustSchemeFilter is NewSchemeFilter for the default patterns.
func MustSchemeFilter() *SchemeFilter {
	f, err := NewSchemeFilter(nil)
	if err != nil {
		panic(err)
	}
	return f
}

// Excluded reports whether rawURL is an internal page. A nil filter excludes
// nothing.
func (f *SchemeFilter) Excluded(rawURL string) bool {
	if f == nil {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(rawURL))
	for _, g := range f.patterns {
		if g.Match(lower) {
			return true
		}
	}
	return false
}
