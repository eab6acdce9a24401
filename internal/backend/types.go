package backend

import "github.com/ayusman/mudra/internal/landmark"

// GestureRef describes a matched gesture template.
type GestureRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Action     string `json:"action,omitempty"`
	AppContext string `json:"app_context"`
}

// MatchRequest is the body of a match call: one full window of frames.
type MatchRequest struct {
	Frames []landmark.Frame `json:"frames"`
}

// MatchResult is the backend's verdict on a window.
type MatchResult struct {
	Matched    bool        `json:"matched"`
	Gesture    *GestureRef `json:"gesture,omitempty"`
	Similarity float64     `json:"similarity,omitempty"`
}

// ExecuteResult reports the outcome of running a gesture's action.
type ExecuteResult struct {
	Success        bool   `json:"success"`
	ActionName     string `json:"action_name,omitempty"`
	WindowSwitched bool   `json:"window_switched,omitempty"`
	WindowTitle    string `json:"window_title,omitempty"`
	AppNotFound    bool   `json:"app_not_found,omitempty"`
	Context        string `json:"context,omitempty"`
	Error          string `json:"error,omitempty"`
}

// RecordingStateRequest toggles backend-side match suppression.
type RecordingStateRequest struct {
	IsRecording bool `json:"is_recording"`
}

// GestureList is the template catalog response.
type GestureList struct {
	Gestures []GestureInfo `json:"gestures"`
}

// GestureInfo is one catalog entry.
type GestureInfo struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Tolerance  float64 `json:"tolerance"`
	AppContext string  `json:"app_context"`
	Action     string  `json:"action,omitempty"`
}
