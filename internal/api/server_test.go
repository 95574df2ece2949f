package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tabfocus/internal/cdpcontrol"
	"github.com/dgnsrekt/tabfocus/internal/controller"
	"github.com/dgnsrekt/tabfocus/internal/relay"
	"github.com/dgnsrekt/tabfocus/internal/types"
)

type stubService struct {
	health    controller.Health
	tabs      []types.Tab
	targets   map[string]types.Target
	prefs     types.Preferences
	switchErr error
	lastMods  types.Modifiers
	lastID    string
}

func newStub() *stubService {
	return &stubService{targets: map[string]types.Target{
		"mail": {ID: "mail", URL: "https://mail.google.com/mail"},
	}}
}

func notFound(id string) error {
	return cdpcontrol.NewError(cdpcontrol.CodeTargetNotFound, "target not found: "+id, nil)
}

func (s *stubService) Health(context.Context) controller.Health { return s.health }
func (s *stubService) ListTabs() []types.Tab                    { return s.tabs }
func (s *stubService) ListTargets() []types.Target {
	out := []types.Target{}
	for _, t := range s.targets {
		out = append(out, t)
	}
	return out
}
func (s *stubService) GetTarget(id string) (types.Target, error) {
	t, ok := s.targets[id]
	if !ok {
		return types.Target{}, notFound(id)
	}
	return t, nil
}
func (s *stubService) CreateTarget(t types.Target) (types.Target, error) {
	t.ID = "new"
	s.targets[t.ID] = t
	return t, nil
}
func (s *stubService) ReplaceTarget(id string, t types.Target) (types.Target, error) {
	if _, ok := s.targets[id]; !ok {
		return types.Target{}, notFound(id)
	}
	t.ID = id
	s.targets[id] = t
	return t, nil
}
func (s *stubService) DeleteTarget(id string) error {
	if _, ok := s.targets[id]; !ok {
		return notFound(id)
	}
	delete(s.targets, id)
	return nil
}
func (s *stubService) Matches(_ context.Context, id string) ([]types.Tab, error) {
	if _, ok := s.targets[id]; !ok {
		return nil, notFound(id)
	}
	return s.tabs, nil
}
func (s *stubService) Switch(_ context.Context, id string, mods types.Modifiers) (types.SwitchResult, error) {
	s.lastID, s.lastMods = id, mods
	if s.switchErr != nil {
		return types.SwitchResult{}, s.switchErr
	}
	return types.SwitchResult{Action: types.ActionFocused, TabID: "A", URL: "https://mail.google.com/mail/u/0/"}, nil
}
func (s *stubService) GetPreferences() types.Preferences { return s.prefs }
func (s *stubService) SetPreferences(_ context.Context, p types.Preferences) error {
	if p.DefaultMatchMode != nil && !p.DefaultMatchMode.Valid() {
		return cdpcontrol.NewError(cdpcontrol.CodeValidation, "unknown match mode", nil)
	}
	s.prefs = p
	return nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDocsDarkMode(t *testing.T) {
	h := NewServer(newStub(), nil)
	w := do(t, h, http.MethodGet, "/docs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
	if w := do(t, h, http.MethodGet, "/docs/events", ""); !strings.Contains(w.Body.String(), "/api/v1/events") {
		t.Fatalf("event docs missing stream path")
	}
}

func TestHealthDegradedWithoutBrowser(t *testing.T) {
	svc := newStub()
	svc.health = controller.Health{Error: "CDP_UNAVAILABLE: down", CachedTabs: 3}
	w := do(t, NewServer(svc, nil), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body struct {
		Status     string `json:"status"`
		CachedTabs int    `json:"cached_tabs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" || body.CachedTabs != 3 {
		t.Fatalf("health = %+v; want degraded with 3 cached tabs", body)
	}
}

func TestSwitchWithoutBody(t *testing.T) {
	svc := newStub()
	w := do(t, NewServer(svc, nil), http.MethodPost, "/api/v1/targets/mail/switch", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if svc.lastID != "mail" || svc.lastMods != (types.Modifiers{}) {
		t.Fatalf("Switch(%q, %+v); want mail with no modifiers", svc.lastID, svc.lastMods)
	}
	var res types.SwitchResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Action != types.ActionFocused || res.TabID != "A" {
		t.Fatalf("result = %+v; want focused A", res)
	}
}

func TestSwitchModifiers(t *testing.T) {
	svc := newStub()
	w := do(t, NewServer(svc, nil), http.MethodPost, "/api/v1/targets/mail/switch", `{"alt":true,"background":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if !svc.lastMods.Alt || !svc.lastMods.Background || svc.lastMods.Shift {
		t.Fatalf("modifiers = %+v; want alt+background", svc.lastMods)
	}
}

func TestSwitchErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{notFound("mail"), http.StatusNotFound},
		{cdpcontrol.NewError(cdpcontrol.CodeCDPUnavailable, "no browser", nil), http.StatusBadGateway},
		{cdpcontrol.NewError(cdpcontrol.CodeHostRejected, "refused", nil), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		svc := newStub()
		svc.switchErr = tt.err
		w := do(t, NewServer(svc, nil), http.MethodPost, "/api/v1/targets/mail/switch", `{}`)
		if w.Code != tt.want {
			t.Fatalf("Switch error %v: status = %d; want %d", tt.err, w.Code, tt.want)
		}
	}
}

func TestTargetLifecycle(t *testing.T) {
	svc := newStub()
	h := NewServer(svc, nil)

	w := do(t, h, http.MethodPost, "/api/v1/targets", `{"url":"https://github.com/","title":"GitHub","matchMode":"domain"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if got := svc.targets["new"]; got.Title != "GitHub" || got.MatchMode == nil || *got.MatchMode != types.MatchDomain {
		t.Fatalf("created target = %+v", got)
	}

	if w := do(t, h, http.MethodPost, "/api/v1/targets", `{"title":"no url"}`); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing url status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}

	if w := do(t, h, http.MethodPut, "/api/v1/targets/new", `{"url":"https://github.com/pulls"}`); w.Code != http.StatusOK {
		t.Fatalf("replace status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if w := do(t, h, http.MethodPut, "/api/v1/targets/missing", `{"url":"https://x.test/"}`); w.Code != http.StatusNotFound {
		t.Fatalf("replace missing status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/targets/new", ""); w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := do(t, h, http.MethodDelete, "/api/v1/targets/new", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/targets/new", ""); w.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestListEndpoints(t *testing.T) {
	svc := newStub()
	svc.tabs = []types.Tab{{ID: "A", URL: "https://mail.google.com/mail/u/0/", WindowID: 1}}
	h := NewServer(svc, nil)

	w := do(t, h, http.MethodGet, "/api/v1/tabs", "")
	if !strings.Contains(w.Body.String(), `"id":"A"`) {
		t.Fatalf("tabs body = %s", w.Body.String())
	}
	w = do(t, h, http.MethodGet, "/api/v1/targets", "")
	if !strings.Contains(w.Body.String(), `"lastBoundTabId":null`) {
		t.Fatalf("targets body should carry null bindings: %s", w.Body.String())
	}
	w = do(t, h, http.MethodGet, "/api/v1/targets/mail/matches", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"targetId":"mail"`) {
		t.Fatalf("matches = %d %s", w.Code, w.Body.String())
	}
}

func TestPreferences(t *testing.T) {
	svc := newStub()
	h := NewServer(svc, nil)

	w := do(t, h, http.MethodPut, "/api/v1/preferences", `{"cycleOnReclick":true,"cycleCooldownMs":900}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if !svc.prefs.CycleEnabled() || svc.prefs.CycleCooldown().Milliseconds() != 900 {
		t.Fatalf("prefs = %+v", svc.prefs)
	}
	if w := do(t, h, http.MethodPut, "/api/v1/preferences", `{"defaultMatchMode":"fuzzy"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid prefs status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestEventStreamMounted(t *testing.T) {
	broker := relay.NewBroker()
	srv := httptest.NewServer(NewServer(newStub(), broker))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q; want text/event-stream", ct)
	}
}

func TestMapErr(t *testing.T) {
	if mapErr(nil) != nil {
		t.Fatal("mapErr(nil) != nil")
	}
	err := mapErr(cdpcontrol.NewError(cdpcontrol.CodeTabNotFound, "gone", nil))
	var se huma.StatusError
	if !errors.As(err, &se) || se.GetStatus() != http.StatusNotFound {
		t.Fatalf("mapErr(TAB_NOT_FOUND) = %v; want 404", err)
	}
}
