// Package browser optionally launches a local Chromium with remote debugging
// enabled so the daemon has something to attach to.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/chromedp/chromedp"
)

const cdpReadyTimeout = 15 * time.Second

// Config holds browser launch configuration.
type Config struct {
	CDPAddress string
	CDPPort    int
	StartURL   string
	ProfileDir string
	ExecPath   string
	WindowW    int
	WindowH    int
}

// Launcher manages a browser process started through a chromedp exec
// allocator.
type Launcher struct {
	cfg Config

	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	running       bool
}

func NewLauncher(cfg Config) *Launcher {
	if cfg.WindowW == 0 || cfg.WindowH == 0 {
		cfg.WindowW, cfg.WindowH = 1440, 900
	}
	if cfg.StartURL == "" {
		cfg.StartURL = "about:blank"
	}
	return &Launcher{cfg: cfg}
}

// detectBrowser finds an available Chrome/Chromium binary.
func detectBrowser() (string, error) {
	candidates := []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", fmt.Errorf("no supported browser found (tried %v)", candidates)
}

// isPortInUse checks whether a TCP port is already listening.
func isPortInUse(address string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(address, fmt.Sprint(port)), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// allocatorOptions builds the exec allocator flags. The browser is headful:
// the tabs it opens belong to the user.
func (l *Launcher) allocatorOptions(execPath string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(execPath),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(l.cfg.WindowW, l.cfg.WindowH),
		chromedp.Flag("headless", false),
		chromedp.Flag("remote-debugging-port", fmt.Sprint(l.cfg.CDPPort)),
		chromedp.Flag("remote-debugging-address", l.cfg.CDPAddress),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-breakpad", true),
	}
	// Without a profile dir chromedp uses a throwaway one.
	if l.cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(l.cfg.ProfileDir))
	}
	return opts
}

// Launch starts the browser unless something already listens on the CDP
// port, then waits for the DevTools endpoint.
func (l *Launcher) Launch(ctx context.Context) error {
	if isPortInUse(l.cfg.CDPAddress, l.cfg.CDPPort) {
		slog.Info("browser already running, skipping launch",
			"address", l.cfg.CDPAddress, "port", l.cfg.CDPPort)
		return nil
	}

	execPath := l.cfg.ExecPath
	if execPath == "" {
		var err error
		if execPath, err = detectBrowser(); err != nil {
			return err
		}
	}
	slog.Info("detected browser", "path", execPath)

	if l.cfg.ProfileDir != "" {
		if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
			return fmt.Errorf("create profile dir: %w", err)
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions(execPath)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	l.allocCancel, l.browserCancel = allocCancel, browserCancel

	// The first Run starts the process and opens the initial tab.
	if err := chromedp.Run(browserCtx, chromedp.Navigate(l.cfg.StartURL)); err != nil {
		l.Stop()
		return fmt.Errorf("start browser: %w", err)
	}
	l.running = true
	slog.Info("browser process started", "start_url", l.cfg.StartURL)

	if err := l.waitForCDP(ctx); err != nil {
		l.Stop()
		return fmt.Errorf("waiting for CDP: %w", err)
	}
	slog.Info("CDP endpoint ready",
		"address", l.cfg.CDPAddress, "port", l.cfg.CDPPort)
	return nil
}

// waitForCDP polls the CDP /json/version endpoint until it responds.
func (l *Launcher) waitForCDP(ctx context.Context) error {
	url := fmt.Sprintf("http://%s/json/version", net.JoinHostPort(l.cfg.CDPAddress, fmt.Sprint(l.cfg.CDPPort)))
	deadline := time.After(cdpReadyTimeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("CDP did not become ready within %s at %s", cdpReadyTimeout, url)
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

// Running reports whether this launcher spawned a browser process.
func (l *Launcher) Running() bool {
	return l.running
}

// Stop closes the browser started by Launch. chromedp terminates the process
// when its allocator context is cancelled.
func (l *Launcher) Stop() {
	if l.browserCancel != nil {
		l.browserCancel()
		l.browserCancel = nil
	}
	if l.allocCancel != nil {
		slog.Info("stopping browser")
		l.allocCancel()
		l.allocCancel = nil
	}
	l.running = false
}
