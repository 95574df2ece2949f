package urlmatch

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/dgnsrekt/tabfocus/internal/types"
)

// Matcher compares tab URLs with target URLs under a match mode. Compiled
// patterns are cached; invalid patterns are cached as nil.
type Matcher struct {
	opts Options

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

func NewMatcher(opts Options) *Matcher {
	return &Matcher{opts: opts, patterns: make(map[string]*regexp.Regexp)}
}

// Options returns the canonicalization options used for comparisons.
func (m *Matcher) Options() Options {
	return m.opts
}

// Canonical canonicalizes raw with the matcher's options.
func (m *Matcher) Canonical(raw string) string {
	return Canonicalize(raw, m.opts)
}

// Matches reports whether tabURL is the same place as targetURL under mode.
// Pattern mode tests the canonical tab URL against pattern and fails closed
// when the pattern is empty or does not compile.
func (m *Matcher) Matches(tabURL, targetURL string, mode types.MatchMode, pattern string) bool {
	if strings.TrimSpace(targetURL) == "" {
		return false
	}
	switch mode {
	case types.MatchExact:
		return m.Canonical(tabURL) == m.Canonical(targetURL)
	case types.MatchPrefix:
		return strings.HasPrefix(m.Canonical(tabURL), m.Canonical(targetURL))
	case types.MatchDomain:
		host := Hostname(tabURL)
		return host != "" && host == Hostname(targetURL)
	case types.MatchPattern:
		re := m.compile(pattern)
		if re == nil {
			return false
		}
		return re.MatchString(m.Canonical(tabURL))
	default:
		return false
	}
}

func (m *Matcher) compile(pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if re, ok := m.patterns[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		slog.Debug("invalid match pattern", "pattern", pattern, "error", err)
		re = nil
	}
	m.patterns[pattern] = re
	return re
}
