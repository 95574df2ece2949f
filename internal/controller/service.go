// Package controller wires the tab cache, switcher, binding store and
// browser host together and serializes all of their work on one event loop.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/tabfocus/internal/cdpcontrol"
	"github.com/dgnsrekt/tabfocus/internal/eventloop"
	"github.com/dgnsrekt/tabfocus/internal/journal"
	"github.com/dgnsrekt/tabfocus/internal/relay"
	"github.com/dgnsrekt/tabfocus/internal/store"
	"github.com/dgnsrekt/tabfocus/internal/switcher"
	"github.com/dgnsrekt/tabfocus/internal/tabcache"
	"github.com/dgnsrekt/tabfocus/internal/types"
	"github.com/dgnsrekt/tabfocus/internal/urlmatch"
)

// Host is the browser the service drives.
type Host interface {
	switcher.Browser
	ListTabs(ctx context.Context) ([]types.Tab, error)
	WindowForTab(ctx context.Context, tabID string) (int64, error)
	Subscribe(h cdpcontrol.TabEvents) (func(), error)
	Probe(ctx context.Context) (int, error)
}

// Health summarizes the daemon's view of the browser.
type Health struct {
	CDPConnected bool   `json:"cdp_connected"`
	Pages        int    `json:"pages"`
	CachedTabs   int    `json:"cached_tabs"`
	Targets      int    `json:"targets"`
	Subscribers  int    `json:"subscribers"`
	LoopPending  int    `json:"loop_pending"`
	Dropped      int64  `json:"dropped_events"`
	Error        string `json:"error,omitempty"`
}

// SwitchEvent is published on the broker after every successful switch.
type SwitchEvent struct {
	TargetID string             `json:"targetId"`
	Result   types.SwitchResult `json:"result"`
}

// Service is the daemon's application layer.
type Service struct {
	host    Host
	store   *store.Store
	loop    *eventloop.Loop
	broker  *relay.Broker
	journal *journal.Writer
	cache   *tabcache.Cache
	sw      *switcher.Switcher
	now     func() time.Time

	mu          sync.Mutex
	unsubscribe func()
}

// Option configures a Service.
type Option func(*options)

type options struct {
	now    func() time.Time
	filter *urlmatch.SchemeFilter
}

// WithClock replaces time.Now for the switcher and journal timings.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSchemeFilter sets the internal-URL exclusion list.
func WithSchemeFilter(f *urlmatch.SchemeFilter) Option {
	return func(o *options) { o.filter = f }
}

// NewService builds a service. broker and jw may be nil.
func NewService(host Host, st *store.Store, loop *eventloop.Loop, broker *relay.Broker, jw *journal.Writer, opts ...Option) *Service {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	cache := tabcache.New(cacheOptions(st.Preferences()))
	swOpts := []switcher.Option{switcher.WithClock(o.now)}
	if o.filter != nil {
		swOpts = append(swOpts, switcher.WithSchemeFilter(o.filter))
	}
	return &Service{
		host:    host,
		store:   st,
		loop:    loop,
		broker:  broker,
		journal: jw,
		cache:   cache,
		sw:      switcher.New(host, st, cache, swOpts...),
		now:     o.now,
	}
}

func cacheOptions(p *types.Preferences) urlmatch.Options {
	return urlmatch.Options{StripTracking: p.StripTracking()}
}

func validation(msg string) error {
	return cdpcontrol.NewError(cdpcontrol.CodeValidation, msg, nil)
}

// mapErr turns store sentinels into coded errors for the API layer.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return cdpcontrol.NewError(cdpcontrol.CodeTargetNotFound, "target not found", err)
	case errors.Is(err, store.ErrInvalid):
		return cdpcontrol.NewError(cdpcontrol.CodeValidation, err.Error(), err)
	}
	return err
}

// Start subscribes to tab lifecycle events and seeds the cache from the
// browser. The loop must be running.
func (s *Service) Start(ctx context.Context) error {
	return s.attach(ctx, "seed")
}

// Resync replaces the event subscription and re-reads every tab from the
// browser. Subscriptions belong to one connection, so call it after every
// reconnect.
func (s *Service) Resync(ctx context.Context) error {
	s.Stop()
	return s.attach(ctx, "resync")
}

func (s *Service) attach(ctx context.Context, name string) error {
	unsub, err := s.host.Subscribe(cdpcontrol.TabEvents{
		Created: s.onTabCreated,
		Changed: s.onTabChanged,
		Removed: s.onTabRemoved,
	})
	if err != nil {
		return fmt.Errorf("subscribe tab events: %w", err)
	}
	s.mu.Lock()
	s.unsubscribe = unsub
	s.mu.Unlock()

	return s.loop.Do(ctx, name, func(context.Context) error {
		return s.seed(ctx)
	})
}

func (s *Service) seed(ctx context.Context) error {
	tabs, err := s.host.ListTabs(ctx)
	if err != nil {
		return fmt.Errorf("list tabs: %w", err)
	}
	s.cache.SetOptions(cacheOptions(s.store.Preferences()))
	s.cache.Reset(tabs)
	slog.Info("tab cache seeded", "tabs", len(tabs))

	// Bindings to tabs that are gone are dead weight from a previous session.
	for _, t := range s.store.Targets() {
		id := t.BoundTabID()
		if id == "" {
			continue
		}
		if _, ok := s.cache.Get(id); ok {
			continue
		}
		if err := s.sw.ClearBindingsForTab(ctx, id); err != nil {
			slog.Warn("failed to clear binding to missing tab", "target_id", t.ID, "tab_id", id, "error", err)
		}
	}
	return nil
}

// Stop removes the event subscription.
func (s *Service) Stop() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Event callbacks run on the CDP read goroutine and only post work.

func (s *Service) onTabCreated(tab types.Tab) {
	s.loop.Post("tab.created", func(ctx context.Context) error {
		return s.addTab(ctx, tab)
	})
}

func (s *Service) onTabChanged(tab types.Tab) {
	s.loop.Post("tab.changed", func(ctx context.Context) error {
		cur, ok := s.cache.Get(tab.ID)
		if !ok {
			return s.addTab(ctx, tab)
		}
		var change types.TabChange
		if tab.URL != cur.URL {
			change.URL = &tab.URL
		}
		if tab.Title != cur.Title {
			change.Title = &tab.Title
		}
		// Info events carry no window id; a drag to another window shows up
		// only here.
		windowID, err := s.host.WindowForTab(ctx, tab.ID)
		switch {
		case cdpcontrol.ErrorCode(err) == cdpcontrol.CodeTabNotFound:
			return nil
		case err != nil:
			slog.Debug("window lookup failed", "tab_id", tab.ID, "error", err)
		case windowID != cur.WindowID:
			change.WindowID = &windowID
		}
		if change.URL == nil && change.Title == nil && change.WindowID == nil {
			return nil
		}
		s.cache.Update(tab.ID, change, tab)
		updated, _ := s.cache.Get(tab.ID)
		s.broker.PublishJSON(relay.TypeTabUpdated, updated)
		if change.URL == nil {
			return nil
		}
		return s.sw.RevalidateBindingsForTab(ctx, tab.ID, updated)
	})
}

func (s *Service) onTabRemoved(tabID string) {
	s.loop.Post("tab.removed", func(ctx context.Context) error {
		s.cache.Remove(tabID)
		s.broker.PublishJSON(relay.TypeTabRemoved, map[string]string{"id": tabID})
		return s.sw.ClearBindingsForTab(ctx, tabID)
	})
}

func (s *Service) addTab(ctx context.Context, tab types.Tab) error {
	if tab.WindowID == 0 {
		windowID, err := s.host.WindowForTab(ctx, tab.ID)
		if err != nil {
			// Closed before we got to it; the removal event follows.
			if cdpcontrol.ErrorCode(err) == cdpcontrol.CodeTabNotFound {
				return nil
			}
			return fmt.Errorf("window for tab %s: %w", tab.ID, err)
		}
		tab.WindowID = windowID
	}
	if tab.LastAccessed == 0 {
		tab.LastAccessed = s.now().UnixMilli()
	}
	s.cache.Add(tab)
	s.broker.PublishJSON(relay.TypeTabCreated, tab)
	return nil
}

// Switch runs the switcher for targetID on the loop.
func (s *Service) Switch(ctx context.Context, targetID string, mods types.Modifiers) (types.SwitchResult, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return types.SwitchResult{}, validation("target_id is required")
	}

	// A switch is not abandoned half way: a tab it opens must get bound.
	ctx = context.WithoutCancel(ctx)
	start := s.now()
	var res types.SwitchResult
	err := s.loop.Do(ctx, "switch", func(context.Context) error {
		target, err := s.store.Target(targetID)
		if err != nil {
			return err
		}
		res, err = s.sw.Switch(ctx, target, mods)
		return err
	})
	err = mapErr(err)

	rec := journal.Record{
		TargetID:   targetID,
		Action:     res.Action,
		TabID:      res.TabID,
		URL:        res.URL,
		Modifiers:  mods,
		DurationMS: s.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
		slog.Warn("switch failed", "target_id", targetID, "error", err)
	} else {
		slog.Info("switch", "target_id", targetID, "action", res.Action, "tab_id", res.TabID)
		s.broker.PublishJSON(relay.TypeSwitch, SwitchEvent{TargetID: targetID, Result: res})
	}
	if jerr := s.journal.Write(rec); jerr != nil {
		slog.Debug("journal write skipped", "error", jerr)
	}
	return res, err
}

// Matches returns the ranked candidate tabs for a target.
func (s *Service) Matches(ctx context.Context, targetID string) ([]types.Tab, error) {
	target, err := s.store.Target(strings.TrimSpace(targetID))
	if err != nil {
		return nil, mapErr(err)
	}
	var out []types.Tab
	// Wait for the job even if ctx ends so out is never written after return.
	err = s.loop.Do(context.WithoutCancel(ctx), "matches", func(context.Context) error {
		windowID, err := s.host.CurrentWindow(ctx)
		if err != nil {
			return err
		}
		out = s.sw.FindMatches(target, windowID)
		return nil
	})
	if out == nil {
		out = []types.Tab{}
	}
	return out, err
}

func (s *Service) ListTabs() []types.Tab {
	return s.cache.GetAll()
}

func (s *Service) ListTargets() []types.Target {
	return s.store.Targets()
}

func (s *Service) GetTarget(id string) (types.Target, error) {
	t, err := s.store.Target(strings.TrimSpace(id))
	return t, mapErr(err)
}

// CreateTarget stores a new target with a fresh id.
func (s *Service) CreateTarget(t types.Target) (types.Target, error) {
	t.ID = ""
	out, err := s.store.PutTarget(t)
	return out, mapErr(err)
}

// ReplaceTarget overwrites an existing target's editable fields.
func (s *Service) ReplaceTarget(id string, t types.Target) (types.Target, error) {
	id = strings.TrimSpace(id)
	if _, err := s.store.Target(id); err != nil {
		return types.Target{}, mapErr(err)
	}
	t.ID = id
	out, err := s.store.PutTarget(t)
	return out, mapErr(err)
}

func (s *Service) DeleteTarget(id string) error {
	id = strings.TrimSpace(id)
	if err := s.store.DeleteTarget(id); err != nil {
		return mapErr(err)
	}
	s.sw.Forget(id)
	return nil
}

func (s *Service) GetPreferences() types.Preferences {
	if p := s.store.Preferences(); p != nil {
		return *p
	}
	return types.Preferences{}
}

// SetPreferences persists p and re-indexes the cache when the URL
// normalization changed.
func (s *Service) SetPreferences(ctx context.Context, p types.Preferences) error {
	if err := s.store.SetPreferences(p); err != nil {
		return mapErr(err)
	}
	return s.loop.Do(ctx, "preferences", func(context.Context) error {
		s.cache.SetOptions(cacheOptions(&p))
		return nil
	})
}

// OnStateReloaded applies an externally edited state file.
func (s *Service) OnStateReloaded(state *types.State) {
	s.loop.Post("state.reloaded", func(context.Context) error {
		s.cache.SetOptions(cacheOptions(state.Preferences))
		return nil
	})
}

// Health probes the browser and reports cache and queue sizes.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{
		CachedTabs:  s.cache.Len(),
		Targets:     len(s.store.Targets()),
		Subscribers: s.broker.ClientCount(),
		LoopPending: s.loop.Pending(),
		Dropped:     s.broker.Dropped(),
	}
	pages, err := s.host.Probe(ctx)
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.CDPConnected = true
	h.Pages = pages
	return h
}
