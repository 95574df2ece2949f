package types

// Tab mirrors a live browser tab. The browser owns the real tab; this is a
// read replica kept in sync by lifecycle events.
type Tab struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	Title        string `json:"title,omitempty"`
	WindowID     int64  `json:"windowId"`
	Active       bool   `json:"active"`
	LastAccessed int64  `json:"lastAccessed"` // unix millis, tie-breaking only
}

// TabChange describes which fields of a tab changed in an update event.
// Nil fields are unchanged.
type TabChange struct {
	URL      *string
	Title    *string
	Active   *bool
	WindowID *int64
}

// Reindexes reports whether the change touches an indexed field.
func (c TabChange) Reindexes() bool {
	return c.URL != nil || c.WindowID != nil
}

