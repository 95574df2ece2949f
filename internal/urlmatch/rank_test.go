package urlmatch

import (
	"testing"

	"github.com/dgnsrekt/tabfocus/internal/types"
)

func ids(tabs []types.Tab) []string {
	out := make([]string, len(tabs))
	for i, t := range tabs {
		out[i] = t.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRankPrefersExactThenWindowThenRecency(t *testing.T) {
	m := NewMatcher(Options{})
	target := "https://example.com/app"
	tabs := []types.Tab{
		{ID: "deep-other-window", URL: "https://example.com/app/x", WindowID: 2, LastAccessed: 1_700_000_000_000},
		{ID: "deep-current-old", URL: "https://example.com/app/y", WindowID: 1, LastAccessed: 1_700_000_000_000},
		{ID: "deep-current-new", URL: "https://example.com/app/z", WindowID: 1, LastAccessed: 1_700_000_050_000},
		{ID: "exact-other-window", URL: "https://example.com/app/", WindowID: 2, LastAccessed: 1_700_000_000_000},
	}
	got := ids(m.Rank(tabs, 1, target))
	want := []string{"exact-other-window", "deep-current-new", "deep-current-old", "deep-other-window"}
	if !equalIDs(got, want) {
		t.Fatalf("Rank() = %v; want %v", got, want)
	}
}

func TestRankStableOnTies(t *testing.T) {
	m := NewMatcher(Options{})
	tabs := []types.Tab{
		{ID: "a", URL: "https://example.com/p/1", WindowID: 1},
		{ID: "b", URL: "https://example.com/p/2", WindowID: 1},
		{ID: "c", URL: "https://example.com/p/3", WindowID: 1},
	}
	got := ids(m.Rank(tabs, 1, "https://example.com/p"))
	if want := []string{"a", "b", "c"}; !equalIDs(got, want) {
		t.Fatalf("Rank() = %v; want %v", got, want)
	}
	if tabs[0].ID != "a" {
		t.Fatal("Rank() modified its input")
	}
}

func TestScoreUnknownWindowGetsNoBonus(t *testing.T) {
	m := NewMatcher(Options{})
	tab := types.Tab{ID: "a", URL: "https://example.com/", WindowID: 0}
	if got, want := m.Score(tab, 0, "https://example.com/"), float64(weightExact); got != want {
		t.Fatalf("Score() = %v; want %v", got, want)
	}
}
