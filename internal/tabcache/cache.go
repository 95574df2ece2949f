// Package tabcache keeps an indexed read replica of the browser's open tabs.
package tabcache

import (
	"sort"
	"sync"

	"github.com/dgnsrekt/tabfocus/internal/types"
	"github.com/dgnsrekt/tabfocus/internal/urlmatch"
)

type idSet map[string]struct{}

// Cache maps tab IDs to tabs, with secondary indices by canonical URL and by
// window. Index entries are only ever added or removed together with the
// primary entry, never rewritten in place.
type Cache struct {
	mu       sync.RWMutex
	opts     urlmatch.Options
	tabs     map[string]types.Tab
	byURL    map[string]idSet
	byWindow map[int64]idSet
}

func New(opts urlmatch.Options) *Cache {
	return &Cache{
		opts:     opts,
		tabs:     make(map[string]types.Tab),
		byURL:    make(map[string]idSet),
		byWindow: make(map[int64]idSet),
	}
}

// Add indexes tab. Adding an id that is already cached replaces it.
func (c *Cache) Add(tab types.Tab) {
	if tab.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(tab.ID)
	c.addLocked(tab)
}

// Remove drops tabID from every index. Unknown ids are ignored.
func (c *Cache) Remove(tabID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(tabID)
}

// Update applies change to tabID. URL and window changes re-index the tab;
// other changes only touch the primary entry. tab carries the full state
// reported with the event and seeds the entry when tabID is not cached.
func (c *Cache) Update(tabID string, change types.TabChange, tab types.Tab) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.tabs[tabID]
	if !ok {
		tab.ID = tabID
		applyChange(&tab, change)
		c.addLocked(tab)
		return
	}

	applyChange(&cur, change)
	if change.Reindexes() {
		c.removeLocked(tabID)
		c.addLocked(cur)
		return
	}
	c.tabs[tabID] = cur
}

func applyChange(t *types.Tab, change types.TabChange) {
	if change.URL != nil {
		t.URL = *change.URL
	}
	if change.Title != nil {
		t.Title = *change.Title
	}
	if change.Active != nil {
		t.Active = *change.Active
	}
	if change.WindowID != nil {
		t.WindowID = *change.WindowID
	}
}

// SetActive marks tabID active and clears the flag on the other tabs of its
// window. It also stamps lastAccessed.
func (c *Cache) SetActive(tabID string, accessedAt int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tab, ok := c.tabs[tabID]
	if !ok {
		return
	}
	for id := range c.byWindow[tab.WindowID] {
		if id == tabID {
			continue
		}
		if sib, ok := c.tabs[id]; ok && sib.Active {
			sib.Active = false
			c.tabs[id] = sib
		}
	}
	tab.Active = true
	if accessedAt > tab.LastAccessed {
		tab.LastAccessed = accessedAt
	}
	c.tabs[tabID] = tab
}

// Get returns the cached tab.
func (c *Cache) Get(tabID string) (types.Tab, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tab, ok := c.tabs[tabID]
	return tab, ok
}

// FindByURL returns the tabs whose canonical URL equals the canonical form
// of rawURL. A non-zero windowID restricts results to that window. Index
// entries without a primary entry are skipped.
func (c *Cache) FindByURL(rawURL string, windowID int64) []types.Tab {
	key := urlmatch.Canonicalize(rawURL, c.opts)

	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.byURL[key]
	out := make([]types.Tab, 0, len(ids))
	for id := range ids {
		if windowID != 0 {
			if _, ok := c.byWindow[windowID][id]; !ok {
				continue
			}
		}
		tab, ok := c.tabs[id]
		if !ok {
			continue
		}
		out = append(out, tab)
	}
	sortTabs(out)
	return out
}

// GetByWindow returns the tabs in windowID.
func (c *Cache) GetByWindow(windowID int64) []types.Tab {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.byWindow[windowID]
	out := make([]types.Tab, 0, len(ids))
	for id := range ids {
		if tab, ok := c.tabs[id]; ok {
			out = append(out, tab)
		}
	}
	sortTabs(out)
	return out
}

// GetAll returns every cached tab.
func (c *Cache) GetAll() []types.Tab {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Tab, 0, len(c.tabs))
	for _, tab := range c.tabs {
		out = append(out, tab)
	}
	sortTabs(out)
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tabs)
}

// Reset replaces the cache contents with tabs, typically from a live
// enumeration at startup.
func (c *Cache) Reset(tabs []types.Tab) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tabs = make(map[string]types.Tab, len(tabs))
	c.byURL = make(map[string]idSet)
	c.byWindow = make(map[int64]idSet)
	for _, tab := range tabs {
		if tab.ID == "" {
			continue
		}
		c.removeLocked(tab.ID)
		c.addLocked(tab)
	}
}

// SetOptions changes the canonicalization options and rebuilds the URL index.
func (c *Cache) SetOptions(opts urlmatch.Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if opts == c.opts {
		return
	}
	c.opts = opts
	c.byURL = make(map[string]idSet)
	for id, tab := range c.tabs {
		if tab.URL != "" {
			addToSet(c.byURL, urlmatch.Canonicalize(tab.URL, c.opts), id)
		}
	}
}

func (c *Cache) addLocked(tab types.Tab) {
	c.tabs[tab.ID] = tab
	if tab.URL != "" {
		addToSet(c.byURL, urlmatch.Canonicalize(tab.URL, c.opts), tab.ID)
	}
	if tab.WindowID != 0 {
		addToSet(c.byWindow, tab.WindowID, tab.ID)
	}
}

func (c *Cache) removeLocked(tabID string) {
	tab, ok := c.tabs[tabID]
	if !ok {
		return
	}
	delete(c.tabs, tabID)
	if tab.URL != "" {
		removeFromSet(c.byURL, urlmatch.Canonicalize(tab.URL, c.opts), tabID)
	}
	if tab.WindowID != 0 {
		removeFromSet(c.byWindow, tab.WindowID, tabID)
	}
}

func addToSet[K comparable](index map[K]idSet, key K, id string) {
	set, ok := index[key]
	if !ok {
		set = make(idSet)
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeFromSet[K comparable](index map[K]idSet, key K, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}

// sortTabs orders results by id so projections are deterministic.
func sortTabs(tabs []types.Tab) {
	sort.Slice(tabs, func(i, j int) bool { return tabs[i].ID < tabs[j].ID })
}
