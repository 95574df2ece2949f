// Package cdpcontrol drives a Chromium-family browser's tabs and windows over
// the Chrome DevTools Protocol.
package cdpcontrol

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/tabfocus/internal/types"
)

const pageType = "page"

// TabEvents receives tab lifecycle notifications. Callbacks run on the CDP
// read goroutine: they must return quickly and must not call the Client.
type TabEvents struct {
	Created func(tab types.Tab)
	Changed func(tab types.Tab)
	Removed func(tabID string)
}

// Client is the browser host used by the switcher. CDP has no notion of the
// focused window or the active tab, so the Client tracks both from the
// actions it performs itself.
type Client struct {
	cdpURL  string
	timeout time.Duration

	mu         sync.Mutex
	cdp        *rawCDP
	unregister []func()

	// Event callbacks take only stateMu.
	stateMu sync.Mutex
	current int64            // last window focused or created into
	active  map[int64]string // window → tab last activated in it
}

func NewClient(cdpURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		cdpURL:  cdpURL,
		timeout: timeout,
		active:  make(map[int64]string),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.cdpURL == "" {
		return newError(CodeCDPUnavailable, "missing CDP URL", nil)
	}

	slog.Info("cdpcontrol connect start", "cdp_url", c.cdpURL)
	c.cleanupLocked()

	c.cdp = newRawCDP(c.cdpURL)
	if err := c.cdp.connect(ctx); err != nil {
		c.cdp = nil
		return newError(CodeCDPUnavailable, "connect to CDP failed", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.cdp.call(callCtx, target.CommandSetDiscoverTargets, &target.SetDiscoverTargetsParams{Discover: true}, nil); err != nil {
		c.cleanupLocked()
		return newError(CodeCDPUnavailable, "enable target discovery failed", err)
	}

	slog.Info("cdpcontrol connect ok", "cdp_url", c.cdpURL)
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
	return nil
}

func (c *Client) cleanupLocked() {
	for _, fn := range c.unregister {
		fn()
	}
	c.unregister = nil
	if c.cdp != nil {
		c.cdp.close()
		c.cdp = nil
	}
	c.stateMu.Lock()
	c.current = 0
	c.active = make(map[int64]string)
	c.stateMu.Unlock()
}

// Done is closed when the browser connection drops. It returns nil when not
// connected.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cdp == nil {
		return nil
	}
	return c.cdp.closed()
}

func (c *Client) conn() (*rawCDP, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cdp == nil {
		return nil, newError(CodeCDPUnavailable, "not connected", nil)
	}
	return c.cdp, nil
}

// call runs a browser-level command with the client timeout and classifies
// its failure.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	cdp, err := c.conn()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := cdp.call(ctx, method, params, out); err != nil {
		return classify(method, err)
	}
	return nil
}

// Subscribe registers tab lifecycle callbacks. Only page targets are
// reported. The returned function removes the callbacks.
func (c *Client) Subscribe(h TabEvents) (func(), error) {
	cdp, err := c.conn()
	if err != nil {
		return nil, err
	}

	var fns []func()
	fns = append(fns, cdp.registerEventHandler(cdproto.EventTargetTargetCreated, func(params json.RawMessage) {
		var ev target.EventTargetCreated
		if json.Unmarshal(params, &ev) != nil || !isPage(ev.TargetInfo) {
			return
		}
		if h.Created != nil {
			h.Created(tabFromInfo(ev.TargetInfo))
		}
	}))
	fns = append(fns, cdp.registerEventHandler(cdproto.EventTargetTargetInfoChanged, func(params json.RawMessage) {
		var ev target.EventTargetInfoChanged
		if json.Unmarshal(params, &ev) != nil || !isPage(ev.TargetInfo) {
			return
		}
		if h.Changed != nil {
			h.Changed(tabFromInfo(ev.TargetInfo))
		}
	}))
	fns = append(fns, cdp.registerEventHandler(cdproto.EventTargetTargetDestroyed, func(params json.RawMessage) {
		var ev target.EventTargetDestroyed
		if json.Unmarshal(params, &ev) != nil || ev.TargetID == "" {
			return
		}
		c.forgetTab(string(ev.TargetID))
		if h.Removed != nil {
			h.Removed(string(ev.TargetID))
		}
	}))

	c.mu.Lock()
	c.unregister = append(c.unregister, fns...)
	c.mu.Unlock()

	return func() {
		for _, fn := range fns {
			fn()
		}
	}, nil
}

// ListTabs enumerates open page targets with their windows.
func (c *Client) ListTabs(ctx context.Context) ([]types.Tab, error) {
	infos, err := c.pageTargets(ctx)
	if err != nil {
		return nil, err
	}

	tabs := make([]types.Tab, 0, len(infos))
	for _, info := range infos {
		tab := tabFromInfo(info)
		windowID, err := c.WindowForTab(ctx, tab.ID)
		if err != nil {
			slog.Debug("cdpcontrol window lookup failed", "tab_id", tab.ID, "error", err)
		}
		tab.WindowID = windowID
		tabs = append(tabs, tab)
	}

	c.stateMu.Lock()
	for i := range tabs {
		if id, ok := c.active[tabs[i].WindowID]; ok && id == tabs[i].ID {
			tabs[i].Active = true
		}
	}
	if c.current == 0 && len(tabs) > 0 {
		c.current = tabs[0].WindowID
	}
	c.stateMu.Unlock()

	sort.SliceStable(tabs, func(i, j int) bool { return tabs[i].ID < tabs[j].ID })
	slog.Debug("cdpcontrol list tabs", "count", len(tabs))
	return tabs, nil
}

func (c *Client) pageTargets(ctx context.Context) ([]*target.Info, error) {
	var res target.GetTargetsReturns
	if err := c.call(ctx, target.CommandGetTargets, &target.GetTargetsParams{}, &res); err != nil {
		return nil, err
	}
	out := make([]*target.Info, 0, len(res.TargetInfos))
	for _, info := range res.TargetInfos {
		if isPage(info) {
			out = append(out, info)
		}
	}
	return out, nil
}

// WindowForTab returns the browser window holding tabID.
func (c *Client) WindowForTab(ctx context.Context, tabID string) (int64, error) {
	var res browser.GetWindowForTargetReturns
	err := c.call(ctx, browser.CommandGetWindowForTarget, &browser.GetWindowForTargetParams{TargetID: target.ID(tabID)}, &res)
	if err != nil {
		return 0, err
	}
	return res.WindowID.Int64(), nil
}

// CurrentWindow returns the window the client last focused or opened a tab
// in, falling back to the window of the first page.
func (c *Client) CurrentWindow(ctx context.Context) (int64, error) {
	c.stateMu.Lock()
	current := c.current
	c.stateMu.Unlock()
	if current != 0 {
		return current, nil
	}

	infos, err := c.pageTargets(ctx)
	if err != nil {
		return 0, err
	}
	if len(infos) == 0 {
		return 0, nil
	}
	windowID, err := c.WindowForTab(ctx, string(infos[0].TargetID))
	if err != nil {
		return 0, err
	}
	c.stateMu.Lock()
	if c.current == 0 {
		c.current = windowID
	}
	c.stateMu.Unlock()
	return windowID, nil
}

// CreateTab opens url in a new tab. CDP opens new tabs in the browser's last
// active window; windowID is used when the real window cannot be looked up.
func (c *Client) CreateTab(ctx context.Context, url string, windowID int64, active bool) (types.Tab, error) {
	if strings.TrimSpace(url) == "" {
		return types.Tab{}, newError(CodeValidation, "url is required", nil)
	}

	var res target.CreateTargetReturns
	params := &target.CreateTargetParams{URL: url, Background: !active}
	if err := c.call(ctx, target.CommandCreateTarget, params, &res); err != nil {
		return types.Tab{}, err
	}

	tab := types.Tab{ID: string(res.TargetID), URL: url, WindowID: windowID, Active: active}
	if w, err := c.WindowForTab(ctx, tab.ID); err == nil && w != 0 {
		tab.WindowID = w
	}
	if active {
		c.noteActive(tab.WindowID, tab.ID)
	}
	slog.Debug("cdpcontrol created tab", "tab_id", tab.ID, "window_id", tab.WindowID, "active", active)
	return tab, nil
}

// ActivateTab brings tabID to the front of its window.
func (c *Client) ActivateTab(ctx context.Context, tabID string) error {
	if tabID == "" {
		return newError(CodeValidation, "tab id is required", nil)
	}
	if err := c.call(ctx, target.CommandActivateTarget, &target.ActivateTargetParams{TargetID: target.ID(tabID)}, nil); err != nil {
		return err
	}
	windowID, err := c.WindowForTab(ctx, tabID)
	if err != nil {
		slog.Debug("cdpcontrol window lookup after activate failed", "tab_id", tabID, "error", err)
		return nil
	}
	c.noteActive(windowID, tabID)
	return nil
}

// FocusWindow restores windowID and raises it by re-activating the tab the
// client last activated there.
func (c *Client) FocusWindow(ctx context.Context, windowID int64) error {
	params := &browser.SetWindowBoundsParams{
		WindowID: browser.WindowID(windowID),
		Bounds:   &browser.Bounds{WindowState: browser.WindowStateNormal},
	}
	if err := c.call(ctx, browser.CommandSetWindowBounds, params, nil); err != nil {
		return err
	}

	c.stateMu.Lock()
	tabID := c.active[windowID]
	c.current = windowID
	c.stateMu.Unlock()

	if tabID != "" {
		err := c.call(ctx, target.CommandActivateTarget, &target.ActivateTargetParams{TargetID: target.ID(tabID)}, nil)
		if err != nil && ErrorCode(err) != CodeTabNotFound {
			return err
		}
	}
	return nil
}

// MoveTab re-opens tabID in the current window and closes the original,
// since CDP cannot move tabs between windows. The returned tab has a new id.
func (c *Client) MoveTab(ctx context.Context, tabID string, windowID int64) (types.Tab, error) {
	infos, err := c.pageTargets(ctx)
	if err != nil {
		return types.Tab{}, err
	}
	var src *target.Info
	for _, info := range infos {
		if string(info.TargetID) == tabID {
			src = info
			break
		}
	}
	if src == nil {
		return types.Tab{}, newError(CodeTabNotFound, "tab "+tabID+" not found", nil)
	}

	moved, err := c.CreateTab(ctx, src.URL, windowID, true)
	if err != nil {
		return types.Tab{}, err
	}
	moved.Title = src.Title
	if err := c.CloseTab(ctx, tabID); err != nil && ErrorCode(err) != CodeTabNotFound {
		slog.Warn("cdpcontrol close after move failed", "tab_id", tabID, "error", err)
	}
	slog.Info("cdpcontrol moved tab", "from_tab_id", tabID, "tab_id", moved.ID, "window_id", moved.WindowID)
	return moved, nil
}

// CloseTab closes tabID.
func (c *Client) CloseTab(ctx context.Context, tabID string) error {
	if err := c.call(ctx, target.CommandCloseTarget, &target.CloseTargetParams{TargetID: target.ID(tabID)}, nil); err != nil {
		return err
	}
	c.forgetTab(tabID)
	return nil
}

func (c *Client) noteActive(windowID int64, tabID string) {
	if windowID == 0 {
		return
	}
	c.stateMu.Lock()
	c.active[windowID] = tabID
	c.current = windowID
	c.stateMu.Unlock()
}

func (c *Client) forgetTab(tabID string) {
	c.stateMu.Lock()
	for w, id := range c.active {
		if id == tabID {
			delete(c.active, w)
		}
	}
	c.stateMu.Unlock()
}

func isPage(info *target.Info) bool {
	return info != nil && info.Type == pageType && info.Subtype == ""
}

func tabFromInfo(info *target.Info) types.Tab {
	return types.Tab{ID: string(info.TargetID), URL: info.URL, Title: info.Title}
}

// Probe checks that the browser's HTTP endpoint answers and returns the
// number of open pages. It does not need a WebSocket connection.
func (c *Client) Probe(ctx context.Context) (int, error) {
	if c.cdpURL == "" {
		return 0, newError(CodeCDPUnavailable, "missing CDP URL", nil)
	}
	infos, err := newRawCDP(c.cdpURL).listTargets(ctx)
	if err != nil {
		return 0, newError(CodeCDPUnavailable, "failed to list targets", err)
	}
	pages := 0
	for _, info := range infos {
		if info.Type == pageType {
			pages++
		}
	}
	return pages, nil
}

// IsUnavailable reports whether err means the browser could not be reached.
func IsUnavailable(err error) bool {
	var ce *CodedError
	return errors.As(err, &ce) && ce.Code == CodeCDPUnavailable
}
