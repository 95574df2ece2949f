package types

// Action is the terminal outcome of a switch.
type Action string

const (
	ActionCreated Action = "created"
	ActionFocused Action = "focused"
	ActionCycled  Action = "cycled"
)

// Modifiers are the click modifiers that steer a switch.
type Modifiers struct {
	// Shift forces a new tab, bypassing all matching.
	Shift bool `json:"shift"`
	// Background opens a new tab without activating it (cmd-click).
	Background bool `json:"background"`
	// Alt forces cycling when at least two candidates exist.
	Alt bool `json:"alt"`
}

// SwitchResult reports what a switch did.
type SwitchResult struct {
	Action Action `json:"action"`
	TabID  string `json:"tabId"`
	URL    string `json:"url"`
}
