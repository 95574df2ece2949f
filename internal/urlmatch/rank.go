package urlmatch

import (
	"sort"
	"strings"

	"github.com/dgnsrekt/tabfocus/internal/types"
)

const (
	weightExact   = 1000
	weightPrefix  = 500
	weightDomain  = 100
	weightPattern = 0

	currentWindowBonus = 100
	recencyDivisor     = 1_000_000
)

// Score returns the ranking score of tab against targetURL. The mode weight
// is the strongest relation the tab has with the target (exact over prefix
// over domain); tabs that are only eligible through a pattern weigh zero.
func (m *Matcher) Score(tab types.Tab, currentWindowID int64, targetURL string) float64 {
	score := float64(m.modeWeight(tab.URL, targetURL))
	if currentWindowID != 0 && tab.WindowID == currentWindowID {
		score += currentWindowBonus
	}
	score += float64(tab.LastAccessed) / recencyDivisor
	return score
}

func (m *Matcher) modeWeight(tabURL, targetURL string) int {
	tabCanon, targetCanon := m.Canonical(tabURL), m.Canonical(targetURL)
	switch {
	case tabCanon == targetCanon:
		return weightExact
	case strings.HasPrefix(tabCanon, targetCanon):
		return weightPrefix
	case m.Matches(tabURL, targetURL, types.MatchDomain, ""):
		return weightDomain
	default:
		return weightPattern
	}
}

// Rank returns tabs sorted by descending score. Ties keep input order. The
// input slice is not modified.
func (m *Matcher) Rank(tabs []types.Tab, currentWindowID int64, targetURL string) []types.Tab {
	type scored struct {
		tab   types.Tab
		score float64
	}
	list := make([]scored, len(tabs))
	for i, t := range tabs {
		list[i] = scored{tab: t, score: m.Score(t, currentWindowID, targetURL)}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].score > list[j].score
	})
	out := make([]types.Tab, len(list))
	for i, s := range list {
		out[i] = s.tab
	}
	return out
}
