// Package store persists targets and preferences in a JSON file and serves
// them as immutable snapshots to the switcher.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/dgnsrekt/tabfocus/internal/relay"
	"github.com/dgnsrekt/tabfocus/internal/types"
)

var (
	// ErrNotFound is returned for unknown target ids.
	ErrNotFound = errors.New("target not found")
	// ErrInvalid is returned for targets or preferences that fail validation.
	ErrInvalid = errors.New("invalid input")
)

const reloadDebounce = 150 * time.Millisecond

// Store holds the current state snapshot. Every write replaces the snapshot
// rather than mutating it, so values returned by GetState are never changed
// underneath a reader.
type Store struct {
	path   string
	broker *relay.Broker

	mu        sync.RWMutex
	state     *types.State
	lastWrite []byte
}

// New creates a store backed by path. broker may be nil.
func New(path string, broker *relay.Broker) *Store {
	return &Store{path: path, broker: broker}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. When it does not exist the store starts from
// seed (which may be nil) and writes it out.
func (s *Store) Load(seed *types.State) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("store: read %s: %w", s.path, err)
		}
		state := seedState(seed)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.writeLocked(state); err != nil {
			return err
		}
		slog.Info("state file created", "path", s.path, "targets", len(state.Targets))
		return nil
	}

	state, err := decodeState(data)
	if err != nil {
		return fmt.Errorf("store: decode %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.state = state
	s.lastWrite = data
	s.mu.Unlock()
	slog.Info("state file loaded", "path", s.path, "targets", len(state.Targets))
	return nil
}

// GetState returns the current snapshot, or nil before Load.
func (s *Store) GetState() *types.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Targets returns a copy of all targets.
func (s *Store) Targets() []types.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return []types.Target{}
	}
	out := make([]types.Target, len(s.state.Targets))
	copy(out, s.state.Targets)
	return out
}

// Target returns the target with id.
func (s *Store) Target(id string) (types.Target, error) {
	t, ok := s.GetState().FindTarget(id)
	if !ok {
		return types.Target{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

// Preferences returns the current preferences, possibly nil.
func (s *Store) Preferences() *types.Preferences {
	state := s.GetState()
	if state == nil {
		return nil
	}
	return state.Preferences
}

// UpdateTarget applies a binding patch and persists it.
func (s *Store) UpdateTarget(ctx context.Context, id string, patch types.TargetPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	next, idx := s.cloneLocked(), -1
	for i := range next.Targets {
		if next.Targets[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	patch.Apply(&next.Targets[idx])
	updated := next.Targets[idx]
	err := s.writeLocked(next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.broker.PublishJSON(relay.TypeTargetUpdated, updated)
	return nil
}

// PutTarget creates or replaces a target. An empty id gets a fresh UUID.
// Binding fields are owned by the switcher and are kept from the stored
// target on replace.
func (s *Store) PutTarget(t types.Target) (types.Target, error) {
	if err := ValidateTarget(t); err != nil {
		return types.Target{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Kind == "" {
		t.Kind = types.KindFavorite
	}

	s.mu.Lock()
	next := s.cloneLocked()
	replaced := false
	for i := range next.Targets {
		if next.Targets[i].ID == t.ID {
			t.LastBoundTabID = next.Targets[i].LastBoundTabID
			t.LastBoundAt = next.Targets[i].LastBoundAt
			next.Targets[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		t.LastBoundTabID, t.LastBoundAt = nil, nil
		next.Targets = append(next.Targets, t)
	}
	err := s.writeLocked(next)
	s.mu.Unlock()
	if err != nil {
		return types.Target{}, err
	}
	s.broker.PublishJSON(relay.TypeTargetUpdated, t)
	return t, nil
}

// DeleteTarget removes a target.
func (s *Store) DeleteTarget(id string) error {
	s.mu.Lock()
	next := s.cloneLocked()
	kept := next.Targets[:0]
	for _, t := range next.Targets {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(next.Targets) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next.Targets = kept
	err := s.writeLocked(next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.broker.PublishJSON(relay.TypeTargetDeleted, map[string]string{"id": id})
	return nil
}

// SetPreferences replaces the preferences.
func (s *Store) SetPreferences(p types.Preferences) error {
	if err := ValidatePreferences(p); err != nil {
		return err
	}
	s.mu.Lock()
	next := s.cloneLocked()
	next.Preferences = &p
	err := s.writeLocked(next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.broker.PublishJSON(relay.TypePreferencesUpdated, p)
	return nil
}

// Watch reloads the state file when it is changed by another process and
// calls onReload with the new snapshot. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onReload func(*types.State)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("store: watcher: %w", err)
	}
	defer watcher.Close()

	// Writes replace the file by rename, so watch the directory.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("store: watch %s: %w", dir, err)
	}
	base := filepath.Base(s.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() { s.reload(onReload) })
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("state watcher error", "error", err)
		}
	}
}

func (s *Store) reload(onReload func(*types.State)) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		slog.Warn("state reload: read failed", "path", s.path, "error", err)
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		// Truncated mid-write; the next event carries the content.
		return
	}
	s.mu.Lock()
	if bytes.Equal(data, s.lastWrite) {
		s.mu.Unlock()
		return
	}
	state, err := decodeState(data)
	if err != nil {
		s.mu.Unlock()
		slog.Warn("state reload: decode failed, keeping previous state", "path", s.path, "error", err)
		return
	}
	s.state = state
	s.lastWrite = data
	s.mu.Unlock()

	slog.Info("state file reloaded", "path", s.path, "targets", len(state.Targets))
	s.broker.PublishJSON(relay.TypeStateReloaded, state)
	if onReload != nil {
		onReload(state)
	}
}

// cloneLocked copies the current snapshot so it can be modified.
func (s *Store) cloneLocked() *types.State {
	next := &types.State{Targets: []types.Target{}}
	if s.state == nil {
		return next
	}
	next.Targets = append(next.Targets, s.state.Targets...)
	next.Preferences = s.state.Preferences
	return next
}

// writeLocked persists state atomically and makes it current.
func (s *Store) writeLocked(state *types.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: rename: %w", err)
	}

	s.state = state
	s.lastWrite = data
	return nil
}

func decodeState(data []byte) (*types.State, error) {
	var state types.State
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, err
		}
	}
	if state.Targets == nil {
		state.Targets = []types.Target{}
	}
	return &state, nil
}

func seedState(seed *types.State) *types.State {
	state := &types.State{Targets: []types.Target{}}
	if seed == nil {
		return state
	}
	state.Preferences = seed.Preferences
	for _, t := range seed.Targets {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Kind == "" {
			t.Kind = types.KindFavorite
		}
		t.LastBoundTabID, t.LastBoundAt = nil, nil
		state.Targets = append(state.Targets, t)
	}
	return state
}

// ValidateTarget checks the user-editable fields of t.
func ValidateTarget(t types.Target) error {
	if t.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalid)
	}
	if t.MatchMode != nil && !t.MatchMode.Valid() {
		return fmt.Errorf("%w: unknown match mode %q", ErrInvalid, *t.MatchMode)
	}
	if t.MultiWindowBehavior != nil && !t.MultiWindowBehavior.Valid() {
		return fmt.Errorf("%w: unknown multi-window behavior %q", ErrInvalid, *t.MultiWindowBehavior)
	}
	if t.Kind != "" && t.Kind != types.KindFavorite && t.Kind != types.KindWorkspace {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalid, t.Kind)
	}
	if p := t.Pattern(); p != "" {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: match pattern: %v", ErrInvalid, err)
		}
	}
	return nil
}

// ValidatePreferences checks enum and range fields of p.
func ValidatePreferences(p types.Preferences) error {
	if p.DefaultMatchMode != nil && !p.DefaultMatchMode.Valid() {
		return fmt.Errorf("%w: unknown match mode %q", ErrInvalid, *p.DefaultMatchMode)
	}
	if p.DefaultMultiWindowBehavior != nil && !p.DefaultMultiWindowBehavior.Valid() {
		return fmt.Errorf("%w: unknown multi-window behavior %q", ErrInvalid, *p.DefaultMultiWindowBehavior)
	}
	if p.CycleCooldownMS != nil && *p.CycleCooldownMS < 0 {
		return fmt.Errorf("%w: cycle cooldown must not be negative", ErrInvalid)
	}
	return nil
}
