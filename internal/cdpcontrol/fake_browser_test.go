package cdpcontrol

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

type fakeTarget struct {
	ID     string `json:"targetId"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	window int64
}

type fakeCall struct {
	Method string
	Params json.RawMessage
}

// fakeBrowser serves /json/version, /json/list and a browser-level CDP
// WebSocket backed by an in-memory target list.
type fakeBrowser struct {
	t   *testing.T
	srv *httptest.Server

	mu        sync.Mutex
	targets   []*fakeTarget
	calls     []fakeCall
	newWindow int64
	nextID    int
	conn      net.Conn
	connected chan struct{}
	writeMu   sync.Mutex
}

func newFakeBrowser(t *testing.T, targets ...*fakeTarget) *fakeBrowser {
	t.Helper()
	f := &fakeBrowser{t: t, targets: targets, newWindow: 1, connected: make(chan struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"Browser":"Fake/1.0","webSocketDebuggerUrl":"ws://%s/devtools/browser/fake"}`, r.Host)
	})
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := make([]map[string]string, 0, len(f.targets))
		for _, tg := range f.targets {
			out = append(out, map[string]string{"id": tg.ID, "type": tg.Type, "title": tg.Title, "url": tg.URL})
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/devtools/browser/fake", f.serveWS)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.close)
	return f
}

func (f *fakeBrowser) URL() string { return f.srv.URL }

func (f *fakeBrowser) close() {
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.Unlock()
	f.srv.Close()
}

func (f *fakeBrowser) disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
	}
}

func (f *fakeBrowser) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	close(f.connected)

	go func() {
		defer conn.Close()
		for {
			data, err := wsutil.ReadClientText(conn)
			if err != nil {
				return
			}
			var req struct {
				ID     int64           `json:"id"`
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
			}
			if json.Unmarshal(data, &req) != nil {
				continue
			}
			result, cdpErr := f.handle(req.Method, req.Params)
			resp := map[string]any{"id": req.ID}
			if cdpErr != "" {
				resp["error"] = map[string]any{"code": -32000, "message": cdpErr}
			} else {
				resp["result"] = result
			}
			f.write(resp)
		}
	}()
}

func (f *fakeBrowser) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		f.t.Errorf("fake browser marshal: %v", err)
		return
	}
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return
	}
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_ = wsutil.WriteServerText(conn, data)
}

func (f *fakeBrowser) emit(method string, params any) {
	f.write(map[string]any{"method": method, "params": params})
}

func (f *fakeBrowser) find(id string) *fakeTarget {
	for _, tg := range f.targets {
		if tg.ID == id {
			return tg
		}
	}
	return nil
}

const noTarget = "No target with given id found"

func (f *fakeBrowser) handle(method string, params json.RawMessage) (any, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{Method: method, Params: params})

	var p struct {
		TargetID   string `json:"targetId"`
		URL        string `json:"url"`
		Background bool   `json:"background"`
		WindowID   int64  `json:"windowId"`
	}
	_ = json.Unmarshal(params, &p)

	switch method {
	case "Target.setDiscoverTargets", "Browser.setWindowBounds":
		return map[string]any{}, ""
	case "Target.getTargets":
		infos := make([]*fakeTarget, len(f.targets))
		copy(infos, f.targets)
		return map[string]any{"targetInfos": infos}, ""
	case "Browser.getWindowForTarget":
		tg := f.find(p.TargetID)
		if tg == nil {
			return nil, noTarget
		}
		return map[string]any{"windowId": tg.window, "bounds": map[string]any{"windowState": "normal"}}, ""
	case "Target.createTarget":
		f.nextID++
		tg := &fakeTarget{ID: fmt.Sprintf("NEW%d", f.nextID), Type: "page", URL: p.URL, window: f.newWindow}
		f.targets = append(f.targets, tg)
		return map[string]any{"targetId": tg.ID}, ""
	case "Target.activateTarget":
		if f.find(p.TargetID) == nil {
			return nil, noTarget
		}
		return map[string]any{}, ""
	case "Target.closeTarget":
		for i, tg := range f.targets {
			if tg.ID == p.TargetID {
				f.targets = append(f.targets[:i], f.targets[i+1:]...)
				return map[string]any{"success": true}, ""
			}
		}
		return nil, noTarget
	}
	return nil, "'" + method + "' wasn't found"
}

func (f *fakeBrowser) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

func (f *fakeBrowser) lastCall(method string) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method {
			return f.calls[i].Params, true
		}
	}
	return nil, false
}

func containsMethod(methods []string, method string) bool {
	for _, m := range methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}
