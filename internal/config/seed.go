package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/tabfocus/internal/store"
	"github.com/dgnsrekt/tabfocus/internal/types"
)

// Workspace groups targets that belong to one workspace.
type Workspace struct {
	ID    string         `yaml:"id"`
	Items []types.Target `yaml:"items"`
}

// Seed is the YAML file used to populate a fresh state file.
type Seed struct {
	Preferences *types.Preferences `yaml:"preferences"`
	Targets     []types.Target     `yaml:"targets"`
	Workspaces  []Workspace        `yaml:"workspaces"`
}

// LoadSeed reads a seed file. A missing file yields (nil, nil).
func LoadSeed(path string) (*types.State, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("seed config: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}
	return seed.State()
}

// State flattens the seed into a state snapshot and validates it.
func (s Seed) State() (*types.State, error) {
	state := &types.State{Targets: []types.Target{}, Preferences: s.Preferences}
	if s.Preferences != nil {
		if err := store.ValidatePreferences(*s.Preferences); err != nil {
			return nil, fmt.Errorf("seed config: preferences: %w", err)
		}
	}

	seen := make(map[string]bool)
	add := func(where string, t types.Target) error {
		if err := store.ValidateTarget(t); err != nil {
			return fmt.Errorf("seed config: %s: %w", where, err)
		}
		if t.ID != "" {
			if seen[t.ID] {
				return fmt.Errorf("seed config: %s: duplicate id %q", where, t.ID)
			}
			seen[t.ID] = true
		}
		state.Targets = append(state.Targets, t)
		return nil
	}

	for i, t := range s.Targets {
		if t.Kind == "" {
			t.Kind = types.KindFavorite
		}
		if err := add(fmt.Sprintf("targets[%d]", i), t); err != nil {
			return nil, err
		}
	}
	for i, ws := range s.Workspaces {
		if ws.ID == "" {
			return nil, fmt.Errorf("seed config: workspaces[%d] missing id", i)
		}
		for j, t := range ws.Items {
			t.Kind = types.KindWorkspace
			t.WorkspaceID = ws.ID
			if err := add(fmt.Sprintf("workspaces[%d].items[%d]", i, j), t); err != nil {
				return nil, err
			}
		}
	}
	return state, nil
}
