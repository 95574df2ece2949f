package browser

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestNewLauncherDefaults(t *testing.T) {
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 9222})
	if l.cfg.WindowW != 1440 || l.cfg.WindowH != 900 {
		t.Fatalf("window = %dx%d; want 1440x900", l.cfg.WindowW, l.cfg.WindowH)
	}
	if l.cfg.StartURL != "about:blank" {
		t.Fatalf("StartURL = %q; want about:blank", l.cfg.StartURL)
	}
	if got := len(l.allocatorOptions("/usr/bin/chromium")); got == 0 {
		t.Fatal("allocatorOptions() returned no options")
	}
}

func TestIsPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if !isPortInUse("127.0.0.1", port) {
		t.Fatalf("isPortInUse(%d) = false; want true", port)
	}
	ln.Close()
	if isPortInUse("127.0.0.1", port) {
		t.Fatalf("isPortInUse(%d) after close = true; want false", port)
	}
}

func TestLaunchSkipsWhenPortInUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()
	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	l := NewLauncher(Config{CDPAddress: host, CDPPort: port})
	if err := l.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if l.Running() {
		t.Fatal("Running() = true; want false when an existing browser was reused")
	}
	l.Stop()
}

func TestWaitForCDP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"webSocketDebuggerUrl":"ws://x"}`)
	}))
	defer srv.Close()
	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	l := NewLauncher(Config{CDPAddress: host, CDPPort: port})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.waitForCDP(ctx); err != nil {
		t.Fatalf("waitForCDP() error = %v", err)
	}
}

func TestWaitForCDPHonoursContext(t *testing.T) {
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.waitForCDP(ctx); err == nil {
		t.Fatal("waitForCDP() = nil; want context error")
	}
}
