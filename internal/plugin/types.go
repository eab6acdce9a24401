// Package plugin discovers and runs action plugins. A plugin is an
// executable that reads one JSON Request on stdin and writes one JSON
// Response on stdout.
package plugin

import "encoding/json"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the manifest lists the action.
// A manifest with no actions accepts any.
func (m Manifest) Supports(action string) bool {
	if len(m.Actions) == 0 {
		return true
	}
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is sent to a plugin for one gesture execution.
type Request struct {
	Action     string          `json:"action"`
	Gesture    string          `json:"gesture"`
	AppContext string          `json:"app_context,omitempty"`
	Config     json.RawMessage `json:"config"`
	Params     json.RawMessage `json:"params"`
}

// Response is what a plugin reports back.
type Response struct {
	Success        bool            `json:"success"`
	Error          string          `json:"error,omitempty"`
	WindowSwitched bool            `json:"window_switched,omitempty"`
	WindowTitle    string          `json:"window_title,omitempty"`
	AppNotFound    bool            `json:"app_not_found,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
