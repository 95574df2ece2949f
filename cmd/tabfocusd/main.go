package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/tabfocus/internal/api"
	"github.com/dgnsrekt/tabfocus/internal/browser"
	"github.com/dgnsrekt/tabfocus/internal/cdpcontrol"
	"github.com/dgnsrekt/tabfocus/internal/config"
	"github.com/dgnsrekt/tabfocus/internal/controller"
	"github.com/dgnsrekt/tabfocus/internal/eventloop"
	"github.com/dgnsrekt/tabfocus/internal/journal"
	"github.com/dgnsrekt/tabfocus/internal/netutil"
	"github.com/dgnsrekt/tabfocus/internal/relay"
	"github.com/dgnsrekt/tabfocus/internal/store"
	"github.com/dgnsrekt/tabfocus/internal/urlmatch"
)

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("tabfocusd config loaded",
		"bind_addr", cfg.BindAddr,
		"cdp_url", cfg.CDPURL(),
		"cdp_timeout_ms", cfg.CDPTimeout.Milliseconds(),
		"state_file", cfg.StateFile,
		"seed_file", cfg.SeedFile,
		"watch_state", cfg.WatchState,
		"journal_dir", cfg.JournalDir,
		"launch_browser", cfg.LaunchBrowser,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	filter, err := urlmatch.NewSchemeFilter(cfg.InternalURLPatterns)
	if err != nil {
		slog.Error("invalid internal URL patterns", "error", err)
		os.Exit(1)
	}

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   cfg.StartURL,
			ProfileDir: cfg.ProfileDir,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	seed, err := config.LoadSeed(cfg.SeedFile)
	if err != nil {
		slog.Error("failed to load seed file", "path", cfg.SeedFile, "error", err)
		os.Exit(1)
	}

	broker := relay.NewBroker()
	st := store.New(cfg.StateFile, broker)
	if err := st.Load(seed); err != nil {
		slog.Error("failed to load state", "path", cfg.StateFile, "error", err)
		os.Exit(1)
	}

	jw := journal.New(cfg.JournalDir, cfg.JournalBuffer, cfg.JournalMaxSizeMB)
	defer func() {
		if err := jw.Close(); err != nil {
			slog.Debug("journal close failed", "error", err)
		}
	}()

	loop := eventloop.New()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil {
			slog.Error("event loop failed", "error", err)
		}
	}()

	cdpClient := cdpcontrol.NewClient(cfg.CDPURL(), cfg.CDPTimeout)
	if err := cdpClient.Connect(ctx); err != nil {
		slog.Error("failed to connect to browser", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cdpClient.Close(); err != nil {
			slog.Debug("CDP client close failed", "error", err)
		}
	}()

	svc := controller.NewService(cdpClient, st, loop, broker, jw, controller.WithSchemeFilter(filter))
	if err := svc.Start(ctx); err != nil {
		slog.Error("failed to start controller", "error", err)
		os.Exit(1)
	}
	defer svc.Stop()

	go superviseCDP(ctx, cdpClient, svc)

	if cfg.WatchState {
		go func() {
			if err := st.Watch(ctx, svc.OnStateReloaded); err != nil {
				slog.Warn("state file watch stopped", "error", err)
			}
		}()
	}

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to bind HTTP listener", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	addr := ln.Addr().String()
	srv := &http.Server{Handler: api.NewServer(svc, broker), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("tabfocusd listening", "addr", addr, "docs", "http://"+addr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("tabfocusd server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("tabfocusd shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("tabfocusd shutdown failed", "error", err)
	}
	<-loopDone
}

// superviseCDP reconnects after the browser connection drops and resyncs the
// tab cache, backing off between failed attempts.
func superviseCDP(ctx context.Context, client *cdpcontrol.Client, svc *controller.Service) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
		}
		slog.Warn("browser connection lost, reconnecting")
		svc.Stop()

		delay := reconnectMin
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			err := client.Connect(ctx)
			if err == nil {
				err = svc.Resync(ctx)
			}
			if err == nil {
				slog.Info("browser connection restored")
				break
			}
			slog.Warn("reconnect failed", "error", err, "retry_in", delay)
			delay = min(delay*2, reconnectMax)
		}
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
