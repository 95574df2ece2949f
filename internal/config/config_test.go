package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/tabfocus/internal/types"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9222", cfg.CDPURL())
	assert.Equal(t, "127.0.0.1:8188", cfg.BindAddr)
	assert.Equal(t, 5*time.Second, cfg.CDPTimeout)
	assert.True(t, cfg.WatchState)
	assert.False(t, cfg.LaunchBrowser)
	assert.Nil(t, cfg.InternalURLPatterns)
	assert.True(t, cfg.PortAutoFallback)
	assert.Len(t, cfg.PortCandidates, 3)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHROMIUM_CDP_PORT", "9333")
	t.Setenv("TABFOCUS_LOG_LEVEL", "DEBUG")
	t.Setenv("TABFOCUS_CDP_TIMEOUT_MS", "10")
	t.Setenv("TABFOCUS_WATCH_STATE", "false")
	t.Setenv("TABFOCUS_INTERNAL_URL_PATTERNS", "chrome://*, ,about:*")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9333, cfg.CDPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.CDPTimeout)
	assert.False(t, cfg.WatchState)
	assert.Equal(t, []string{"chrome://*", "about:*"}, cfg.InternalURLPatterns)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TABFOCUS_BIND_ADDR=0.0.0.0:9000\n"), 0o644))
	t.Setenv("TABFOCUS_BIND_ADDR", "")
	os.Unsetenv("TABFOCUS_BIND_ADDR")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.BindAddr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TABFOCUS_LOG_LEVEL", "loud")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("TABFOCUS_LOG_LEVEL", "info")
	t.Setenv("CHROMIUM_CDP_PORT", "70000")
	_, err = Load()
	assert.Error(t, err)
}

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSeed(t *testing.T) {
	path := writeSeed(t, `
preferences:
  default_match_mode: domain
  cycle_on_reclick: true
  cycle_cooldown_ms: 800
targets:
  - id: mail
    title: Mail
    url: https://mail.google.com/mail
    match_mode: prefix
  - url: https://github.com/
workspaces:
  - id: work
    items:
      - url: https://linear.app/
        multi_window_behavior: adopt
`)
	state, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, state.Targets, 3)

	assert.Equal(t, types.MatchDomain, state.Preferences.MatchMode())
	assert.True(t, state.Preferences.CycleEnabled())
	assert.Equal(t, 800*time.Millisecond, state.Preferences.CycleCooldown())

	assert.Equal(t, "mail", state.Targets[0].ID)
	assert.Equal(t, types.KindFavorite, state.Targets[0].Kind)
	assert.Equal(t, types.MatchPrefix, *state.Targets[0].MatchMode)
	assert.Nil(t, state.Targets[0].LastBoundTabID)

	ws := state.Targets[2]
	assert.Equal(t, types.KindWorkspace, ws.Kind)
	assert.Equal(t, "work", ws.WorkspaceID)
	assert.Equal(t, types.WindowAdopt, *ws.MultiWindowBehavior)
}

func TestLoadSeedMissingFile(t *testing.T) {
	state, err := LoadSeed(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, state)

	state, err = LoadSeed("")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestLoadSeedValidation(t *testing.T) {
	tests := map[string]string{
		"missing url":    "targets:\n  - title: x\n",
		"bad mode":       "targets:\n  - url: https://a.test/\n    match_mode: fuzzy\n",
		"bad pattern":    "targets:\n  - url: https://a.test/\n    match_mode: pattern\n    match_pattern: \"(\"\n",
		"duplicate id":   "targets:\n  - id: a\n    url: https://a.test/\n  - id: a\n    url: https://b.test/\n",
		"workspace id":   "workspaces:\n  - items:\n      - url: https://a.test/\n",
		"bad preference": "preferences:\n  default_multi_window_behavior: teleport\n",
		"not yaml":       "targets: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSeed(writeSeed(t, body))
			assert.Error(t, err)
		})
	}
}
