package types

import "time"

// MatchMode selects how a tab URL is compared with a target URL.
type MatchMode string

const (
	MatchExact   MatchMode = "exact"
	MatchPrefix  MatchMode = "prefix"
	MatchDomain  MatchMode = "domain"
	MatchPattern MatchMode = "pattern"
)

// Valid reports whether m is one of the known modes.
func (m MatchMode) Valid() bool {
	switch m {
	case MatchExact, MatchPrefix, MatchDomain, MatchPattern:
		return true
	}
	return false
}

// MultiWindowBehavior decides what focusing a tab in another window does.
type MultiWindowBehavior string

const (
	// WindowFocus brings the other window to the front.
	WindowFocus MultiWindowBehavior = "focus"
	// WindowAdopt moves the tab into the current window.
	WindowAdopt MultiWindowBehavior = "adopt"
)

// Valid reports whether b is one of the known behaviours.
func (b MultiWindowBehavior) Valid() bool {
	return b == WindowFocus || b == WindowAdopt
}

// TargetKind distinguishes favorites from workspace items. It has no effect
// on matching.
type TargetKind string

const (
	KindFavorite  TargetKind = "favorite"
	KindWorkspace TargetKind = "workspace"
)

// Target is a favorite or workspace item the user clicks to reach a logical
// destination. The binding fields are always serialized so that an unbound
// target round-trips as explicit nulls.
type Target struct {
	ID                  string               `json:"id" yaml:"id"`
	Title               string               `json:"title,omitempty" yaml:"title,omitempty"`
	Kind                TargetKind           `json:"kind,omitempty" yaml:"kind,omitempty"`
	WorkspaceID         string               `json:"workspaceId,omitempty" yaml:"workspace_id,omitempty"`
	URL                 string               `json:"url" yaml:"url"`
	MatchMode           *MatchMode           `json:"matchMode" yaml:"match_mode,omitempty"`
	MatchPattern        *string              `json:"matchPattern" yaml:"match_pattern,omitempty"`
	MultiWindowBehavior *MultiWindowBehavior `json:"multiWindowBehavior" yaml:"multi_window_behavior,omitempty"`
	LastBoundTabID      *string              `json:"lastBoundTabId" yaml:"-"`
	LastBoundAt         *time.Time           `json:"lastBoundAt" yaml:"-"`
}

// Pattern returns the match pattern or "" when unset.
func (t Target) Pattern() string {
	if t.MatchPattern == nil {
		return ""
	}
	return *t.MatchPattern
}

// BoundTabID returns the bound tab id or "" when unbound.
func (t Target) BoundTabID() string {
	if t.LastBoundTabID == nil {
		return ""
	}
	return *t.LastBoundTabID
}

// TargetPatch carries the binding fields written back after a switch. Both
// fields are always applied; nil clears.
type TargetPatch struct {
	LastBoundTabID *string
	LastBoundAt    *time.Time
}

// BindPatch returns a patch binding the target to tabID at the given time.
func BindPatch(tabID string, at time.Time) TargetPatch {
	return TargetPatch{LastBoundTabID: &tabID, LastBoundAt: &at}
}

// ClearPatch returns a patch that clears the binding.
func ClearPatch() TargetPatch {
	return TargetPatch{}
}

// Apply writes the patch onto t.
func (p TargetPatch) Apply(t *Target) {
	t.LastBoundTabID = p.LastBoundTabID
	t.LastBoundAt = p.LastBoundAt
}
