package types

import "time"

// Defaults used when preferences are missing or a field is unset.
const (
	DefaultMatchMode           = MatchPrefix
	DefaultMultiWindowBehavior = WindowFocus
	DefaultCycleCooldown       = 1500 * time.Millisecond
)

// Preferences are user settings read by the switcher. Every field is optional.
type Preferences struct {
	DefaultMatchMode           *MatchMode           `json:"defaultMatchMode,omitempty" yaml:"default_match_mode,omitempty"`
	DefaultMultiWindowBehavior *MultiWindowBehavior `json:"defaultMultiWindowBehavior,omitempty" yaml:"default_multi_window_behavior,omitempty"`
	CycleOnReclick             *bool                `json:"cycleOnReclick,omitempty" yaml:"cycle_on_reclick,omitempty"`
	CycleCooldownMS            *int64               `json:"cycleCooldownMs,omitempty" yaml:"cycle_cooldown_ms,omitempty"`
	StripTrackingParams        *bool                `json:"stripTrackingParams,omitempty" yaml:"strip_tracking_params,omitempty"`
}

// State is the snapshot returned by the persisted state accessor.
type State struct {
	Targets     []Target     `json:"targets"`
	Preferences *Preferences `json:"preferences"`
}

// FindTarget returns the target with the given id.
func (s *State) FindTarget(id string) (Target, bool) {
	if s == nil {
		return Target{}, false
	}
	for _, t := range s.Targets {
		if t.ID == id {
			return t, true
		}
	}
	return Target{}, false
}

// MatchMode returns the default match mode, tolerating a nil receiver.
func (p *Preferences) MatchMode() MatchMode {
	if p == nil || p.DefaultMatchMode == nil || !p.DefaultMatchMode.Valid() {
		return DefaultMatchMode
	}
	return *p.DefaultMatchMode
}

// MultiWindow returns the default multi-window behaviour.
func (p *Preferences) MultiWindow() MultiWindowBehavior {
	if p == nil || p.DefaultMultiWindowBehavior == nil || !p.DefaultMultiWindowBehavior.Valid() {
		return DefaultMultiWindowBehavior
	}
	return *p.DefaultMultiWindowBehavior
}

// CycleEnabled reports whether reclicks cycle through candidates.
func (p *Preferences) CycleEnabled() bool {
	return p != nil && p.CycleOnReclick != nil && *p.CycleOnReclick
}

// CycleCooldown returns the reclick window.
func (p *Preferences) CycleCooldown() time.Duration {
	if p == nil || p.CycleCooldownMS == nil || *p.CycleCooldownMS <= 0 {
		return DefaultCycleCooldown
	}
	return time.Duration(*p.CycleCooldownMS) * time.Millisecond
}

// StripTracking reports whether tracking query parameters are ignored.
// Enabled unless explicitly turned off.
func (p *Preferences) StripTracking() bool {
	if p == nil || p.StripTrackingParams == nil {
		return true
	}
	return *p.StripTrackingParams
}

// EffectiveMatchMode resolves the mode for a target: target override, then
// preference default, then prefix.
func EffectiveMatchMode(t Target, p *Preferences) MatchMode {
	if t.MatchMode != nil && t.MatchMode.Valid() {
		return *t.MatchMode
	}
	return p.MatchMode()
}

// EffectiveMultiWindow resolves the multi-window behaviour for a target.
func EffectiveMultiWindow(t Target, p *Preferences) MultiWindowBehavior {
	if t.MultiWindowBehavior != nil && t.MultiWindowBehavior.Valid() {
		return *t.MultiWindowBehavior
	}
	return p.MultiWindow()
}
