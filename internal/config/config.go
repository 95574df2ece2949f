package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the daemon configuration.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int
	CDPTimeout time.Duration

	// HTTP API
	BindAddr         string
	PortAutoFallback bool
	PortCandidates   []string

	// Logging
	LogLevel string
	LogFile  string

	// Binding store
	StateFile  string
	SeedFile   string
	WatchState bool

	// Switch journal
	JournalDir       string
	JournalMaxSizeMB int
	JournalBuffer    int

	// Tab matching
	InternalURLPatterns []string

	// Optional local browser
	LaunchBrowser bool
	ProfileDir    string
	StartURL      string
}

// Load reads configuration from environment variables and an optional .env
// file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:          getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:             getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		CDPTimeout:          time.Duration(getEnvIntOrDefault("TABFOCUS_CDP_TIMEOUT_MS", 5000)) * time.Millisecond,
		BindAddr:            getEnvOrDefault("TABFOCUS_BIND_ADDR", "127.0.0.1:8188"),
		PortAutoFallback:    getEnvBoolOrDefault("TABFOCUS_PORT_AUTO_FALLBACK", true),
		PortCandidates:      getEnvListOrDefault("TABFOCUS_PORT_CANDIDATES", []string{"127.0.0.1:8189", "127.0.0.1:8190", "127.0.0.1:8191"}),
		LogLevel:            strings.ToLower(getEnvOrDefault("TABFOCUS_LOG_LEVEL", "info")),
		LogFile:             getEnvOrDefault("TABFOCUS_LOG_FILE", "logs/tabfocusd.log"),
		StateFile:           getEnvOrDefault("TABFOCUS_STATE_FILE", "./data/state.json"),
		SeedFile:            getEnvOrDefault("TABFOCUS_SEED_FILE", "./tabfocus.yaml"),
		WatchState:          getEnvBoolOrDefault("TABFOCUS_WATCH_STATE", true),
		JournalDir:          getEnvOrDefault("TABFOCUS_JOURNAL_DIR", "./data/journal"),
		JournalMaxSizeMB:    getEnvIntOrDefault("TABFOCUS_JOURNAL_MAX_SIZE_MB", 50),
		JournalBuffer:       getEnvIntOrDefault("TABFOCUS_JOURNAL_BUFFER", 256),
		InternalURLPatterns: getEnvListOrDefault("TABFOCUS_INTERNAL_URL_PATTERNS", nil),
		LaunchBrowser:       getEnvBoolOrDefault("TABFOCUS_LAUNCH_BROWSER", false),
		ProfileDir:          getEnvOrDefault("TABFOCUS_PROFILE_DIR", "./data/chromium-profile"),
		StartURL:            getEnvOrDefault("TABFOCUS_START_URL", "about:blank"),
	}

	if cfg.CDPTimeout < time.Second {
		cfg.CDPTimeout = time.Second
	}
	if cfg.CDPPort <= 0 || cfg.CDPPort > 65535 {
		return nil, fmt.Errorf("CHROMIUM_CDP_PORT out of range: %d", cfg.CDPPort)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("TABFOCUS_LOG_LEVEL must be debug, info, warn or error, got %q", cfg.LogLevel)
	}
	return cfg, nil
}

// CDPURL returns the browser's DevTools HTTP endpoint.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvListOrDefault splits a comma-separated value, dropping blanks.
func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
