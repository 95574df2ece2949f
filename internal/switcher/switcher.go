// Package switcher decides, for each click on a target, whether to focus an
// open tab, cycle through several, or open a new one.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/tabfocus/internal/types"
	"github.com/dgnsrekt/tabfocus/internal/urlmatch"
)

// Browser is the host capability used to act on live tabs and windows.
type Browser interface {
	CurrentWindow(ctx context.Context) (int64, error)
	CreateTab(ctx context.Context, url string, windowID int64, active bool) (types.Tab, error)
	ActivateTab(ctx context.Context, tabID string) error
	FocusWindow(ctx context.Context, windowID int64) error
	// MoveTab moves tabID into windowID and returns the tab as it now
	// exists. Hosts that cannot move tabs may return a replacement tab.
	MoveTab(ctx context.Context, tabID string, windowID int64) (types.Tab, error)
}

// StateAccessor reads the last known target state and persists binding
// changes. GetState returns nil until state is loaded.
type StateAccessor interface {
	GetState() *types.State
	UpdateTarget(ctx context.Context, targetID string, patch types.TargetPatch) error
}

// TabIndex is the subset of the tab cache the switcher reads and writes.
type TabIndex interface {
	Get(tabID string) (types.Tab, bool)
	GetAll() []types.Tab
	Add(tab types.Tab)
	Remove(tabID string)
	SetActive(tabID string, accessedAt int64)
}

// Option configures a Switcher.
type Option func(*Switcher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Switcher) { s.now = now }
}

// WithSchemeFilter sets the filter excluding internal browser pages from
// candidate matching.
func WithSchemeFilter(f *urlmatch.SchemeFilter) Option {
	return func(s *Switcher) { s.filter = f }
}

// Switcher runs the focus-or-open algorithm. It is driven from a single
// goroutine. Each instance owns its reclick memory.
type Switcher struct {
	browser Browser
	state   StateAccessor
	tabs    TabIndex
	filter  *urlmatch.SchemeFilter
	now     func() time.Time

	mu          sync.Mutex
	lastClick   map[string]time.Time
	cycles      map[string][]string
	matcher     *urlmatch.Matcher
	matcherOpts urlmatch.Options
}

func New(browser Browser, state StateAccessor, tabs TabIndex, opts ...Option) *Switcher {
	s := &Switcher{
		browser:   browser,
		state:     state,
		tabs:      tabs,
		filter:    urlmatch.MustSchemeFilter(),
		now:       time.Now,
		lastClick: make(map[string]time.Time),
		cycles:    make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Switch resolves a click on target.
//
// Shift always opens a new tab without looking at open tabs. Otherwise a
// still-matching bound tab wins over every other candidate, a stale binding
// is cleared, no candidates opens a new tab, and Alt or a reclick within the
// cooldown cycles when at least two candidates exist.
func (s *Switcher) Switch(ctx context.Context, target types.Target, mods types.Modifiers) (types.SwitchResult, error) {
	windowID, err := s.browser.CurrentWindow(ctx)
	if err != nil {
		return types.SwitchResult{}, fmt.Errorf("resolve current window: %w", err)
	}

	if mods.Shift {
		return s.openNew(ctx, target, windowID, mods.Background)
	}

	state := s.state.GetState()
	prefs := preferences(state)
	reclick := s.recordClick(target.ID, prefs)

	candidates := s.findMatches(state, target, windowID)
	if boundID := target.BoundTabID(); boundID != "" {
		tab, ok := s.tabs.Get(boundID)
		if ok && s.IsValidBinding(target, tab) {
			candidates = promote(candidates, tab)
		} else {
			slog.Debug("clearing stale binding", "target_id", target.ID, "tab_id", boundID)
			if err := s.state.UpdateTarget(ctx, target.ID, types.ClearPatch()); err != nil {
				slog.Warn("failed to clear stale binding", "target_id", target.ID, "tab_id", boundID, "error", err)
			}
		}
	}

	if len(candidates) == 0 {
		return s.openNew(ctx, target, windowID, mods.Background)
	}

	if len(candidates) >= 2 && (mods.Alt || reclick) {
		next := nextInOrder(s.cycleOrder(target.ID, candidates), candidates, windowID)
		tab, err := s.focusTab(ctx, state, target, next, windowID)
		if err != nil {
			return types.SwitchResult{}, err
		}
		s.bind(ctx, target.ID, tab.ID)
		return types.SwitchResult{Action: types.ActionCycled, TabID: tab.ID, URL: tab.URL}, nil
	}

	s.resetCycle(target.ID)
	tab, err := s.focusTab(ctx, state, target, candidates[0], windowID)
	if err != nil {
		return types.SwitchResult{}, err
	}
	s.bind(ctx, target.ID, tab.ID)
	return types.SwitchResult{Action: types.ActionFocused, TabID: tab.ID, URL: tab.URL}, nil
}

// FindMatches returns the ranked candidate tabs for target. It returns nil
// while state is not loaded.
func (s *Switcher) FindMatches(target types.Target, currentWindowID int64) []types.Tab {
	return s.findMatches(s.state.GetState(), target, currentWindowID)
}

func (s *Switcher) findMatches(state *types.State, target types.Target, currentWindowID int64) []types.Tab {
	if state == nil {
		return nil
	}
	m := s.matcherFor(state.Preferences)
	mode := types.EffectiveMatchMode(target, state.Preferences)

	var matched []types.Tab
	for _, tab := range s.tabs.GetAll() {
		if s.filter.Excluded(tab.URL) {
			continue
		}
		if m.Matches(tab.URL, target.URL, mode, target.Pattern()) {
			matched = append(matched, tab)
		}
	}
	return m.Rank(matched, currentWindowID, target.URL)
}

// IsValidBinding reports whether tab still represents target.
func (s *Switcher) IsValidBinding(target types.Target, tab types.Tab) bool {
	state := s.state.GetState()
	if state == nil || tab.ID == "" || s.filter.Excluded(tab.URL) {
		return false
	}
	m := s.matcherFor(state.Preferences)
	return m.Matches(tab.URL, target.URL, types.EffectiveMatchMode(target, state.Preferences), target.Pattern())
}

// ClearBindingsForTab clears the binding of every target bound to tabID.
// Called when a tab closes.
func (s *Switcher) ClearBindingsForTab(ctx context.Context, tabID string) error {
	state := s.state.GetState()
	if state == nil || tabID == "" {
		return nil
	}
	var errs []error
	for _, t := range state.Targets {
		if t.BoundTabID() != tabID {
			continue
		}
		slog.Debug("clearing binding for closed tab", "target_id", t.ID, "tab_id", tabID)
		if err := s.state.UpdateTarget(ctx, t.ID, types.ClearPatch()); err != nil {
			errs = append(errs, fmt.Errorf("clear binding of %s: %w", t.ID, err))
		}
	}
	return errors.Join(errs...)
}

// RevalidateBindingsForTab clears bindings to tabID that no longer match
// after the tab navigated.
func (s *Switcher) RevalidateBindingsForTab(ctx context.Context, tabID string, tab types.Tab) error {
	state := s.state.GetState()
	if state == nil || tabID == "" {
		return nil
	}
	if tab.ID == "" {
		tab.ID = tabID
	}
	var errs []error
	for _, t := range state.Targets {
		if t.BoundTabID() != tabID || s.IsValidBinding(t, tab) {
			continue
		}
		slog.Debug("binding no longer matches", "target_id", t.ID, "tab_id", tabID, "url", tab.URL)
		if err := s.state.UpdateTarget(ctx, t.ID, types.ClearPatch()); err != nil {
			errs = append(errs, fmt.Errorf("clear binding of %s: %w", t.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Forget drops the reclick and cycle memory for targetID.
func (s *Switcher) Forget(targetID string) {
	s.mu.Lock()
	delete(s.lastClick, targetID)
	delete(s.cycles, targetID)
	s.mu.Unlock()
}

// focusTab brings tab to the front. When the tab lives in another window the
// target's multi-window behaviour either focuses that window or adopts the
// tab into the current one. Without loaded state the tab is just activated.
func (s *Switcher) focusTab(ctx context.Context, state *types.State, target types.Target, tab types.Tab, currentWindowID int64) (types.Tab, error) {
	if state != nil && currentWindowID != 0 && tab.WindowID != 0 && tab.WindowID != currentWindowID {
		switch types.EffectiveMultiWindow(target, state.Preferences) {
		case types.WindowAdopt:
			moved, err := s.browser.MoveTab(ctx, tab.ID, currentWindowID)
			if err != nil {
				return types.Tab{}, fmt.Errorf("move tab %s to window %d: %w", tab.ID, currentWindowID, err)
			}
			if moved.ID == "" {
				moved = tab
			}
			if moved.URL == "" {
				moved.URL = tab.URL
			}
			if moved.WindowID == 0 {
				moved.WindowID = currentWindowID
			}
			if moved.ID != tab.ID {
				s.tabs.Remove(tab.ID)
			}
			s.tabs.Add(moved)
			tab = moved
		default:
			if err := s.browser.FocusWindow(ctx, tab.WindowID); err != nil {
				return types.Tab{}, fmt.Errorf("focus window %d: %w", tab.WindowID, err)
			}
		}
	}

	if err := s.browser.ActivateTab(ctx, tab.ID); err != nil {
		return types.Tab{}, fmt.Errorf("activate tab %s: %w", tab.ID, err)
	}
	s.tabs.SetActive(tab.ID, s.now().UnixMilli())
	tab.Active = true
	return tab, nil
}

// openNew creates a tab at the target URL and caches it before returning so
// the next lookup sees it without waiting for the creation event.
func (s *Switcher) openNew(ctx context.Context, target types.Target, windowID int64, background bool) (types.SwitchResult, error) {
	tab, err := s.browser.CreateTab(ctx, target.URL, windowID, !background)
	if err != nil {
		return types.SwitchResult{}, fmt.Errorf("create tab for %s: %w", target.ID, err)
	}
	if tab.URL == "" {
		tab.URL = target.URL
	}
	if tab.WindowID == 0 {
		tab.WindowID = windowID
	}
	tab.LastAccessed = s.now().UnixMilli()
	tab.Active = false
	s.tabs.Add(tab)
	if !background {
		s.tabs.SetActive(tab.ID, tab.LastAccessed)
	}

	s.bind(ctx, target.ID, tab.ID)
	slog.Info("opened tab", "target_id", target.ID, "tab_id", tab.ID, "window_id", tab.WindowID, "background", background)
	return types.SwitchResult{Action: types.ActionCreated, TabID: tab.ID, URL: tab.URL}, nil
}

func (s *Switcher) bind(ctx context.Context, targetID, tabID string) {
	if err := s.state.UpdateTarget(ctx, targetID, types.BindPatch(tabID, s.now().UTC())); err != nil {
		slog.Warn("failed to persist binding", "target_id", targetID, "tab_id", tabID, "error", err)
	}
}

// recordClick stores now as the latest click on targetID and reports whether
// it is a reclick within the cooldown with cycling enabled.
func (s *Switcher) recordClick(targetID string, prefs *types.Preferences) bool {
	now := s.now()
	s.mu.Lock()
	prev, seen := s.lastClick[targetID]
	s.lastClick[targetID] = now
	s.mu.Unlock()

	return seen && prefs.CycleEnabled() && now.Sub(prev) < prefs.CycleCooldown()
}

// cycleOrder returns the order in which targetID's candidates are visited.
// It starts as the ranking at the first cycling click and stays fixed while
// cycling continues. Closed tabs drop out and new ones join at the end.
func (s *Switcher) cycleOrder(targetID string, candidates []types.Tab) []string {
	present := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		present[c.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	order := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, id := range s.cycles[targetID] {
		if present[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	for _, c := range candidates {
		if !seen[c.ID] {
			order = append(order, c.ID)
		}
	}
	s.cycles[targetID] = order
	return order
}

func (s *Switcher) resetCycle(targetID string) {
	s.mu.Lock()
	delete(s.cycles, targetID)
	s.mu.Unlock()
}

func (s *Switcher) matcherFor(prefs *types.Preferences) *urlmatch.Matcher {
	opts := urlmatch.Options{StripTracking: prefs.StripTracking()}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matcher == nil || s.matcherOpts != opts {
		s.matcher = urlmatch.NewMatcher(opts)
		s.matcherOpts = opts
	}
	return s.matcher
}

func preferences(state *types.State) *types.Preferences {
	if state == nil {
		return nil
	}
	return state.Preferences
}

// promote moves tab to the front of candidates, adding it when absent.
func promote(candidates []types.Tab, tab types.Tab) []types.Tab {
	out := make([]types.Tab, 0, len(candidates)+1)
	out = append(out, tab)
	for _, c := range candidates {
		if c.ID != tab.ID {
			out = append(out, c)
		}
	}
	return out
}

// nextInOrder returns the candidate after the one active in the current
// window, or the first in order when none of them is. order holds exactly
// the ids of candidates.
func nextInOrder(order []string, candidates []types.Tab, currentWindowID int64) types.Tab {
	byID := make(map[string]types.Tab, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	for i, id := range order {
		c := byID[id]
		if c.Active && (currentWindowID == 0 || c.WindowID == currentWindowID) {
			return byID[order[(i+1)%len(order)]]
		}
	}
	return byID[order[0]]
}
