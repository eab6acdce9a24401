// Package main provides the app-control plugin for macOS. It brings the
// gesture's target application to the front and optionally sends it a
// keystroke, via AppleScript.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action     string          `json:"action"`
	Gesture    string          `json:"gesture"`
	AppContext string          `json:"app_context"`
	Config     json.RawMessage `json:"config"`
	Params     json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
	WindowSwitched bool   `json:"window_switched,omitempty"`
	WindowTitle    string `json:"window_title,omitempty"`
	AppNotFound    bool   `json:"app_not_found,omitempty"`
}

// Params selects the target and, for keystroke, the key to send. App is an
// application name or bundle identifier and overrides the gesture context.
type Params struct {
	App       string   `json:"app"`
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// globalContext is the context of gestures that are not tied to an app.
const globalContext = "global"

// errAppNotFound is returned when the target application is not running.
var errAppNotFound = errors.New("application is not running")

// modifierMap maps user-friendly modifier names to AppleScript equivalents.
var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

// runScript executes one AppleScript and returns its trimmed output.
var runScript = func(script string) (string, error) {
	out, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func main() {
	writeResponse(os.Stdout, handle(os.Stdin))
}

func handle(r io.Reader) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	p, err := params(req)
	if err != nil {
		return Response{Error: err.Error()}
	}

	switch req.Action {
	case "activate":
		return activate(p)
	case "keystroke":
		if p.Key == "" {
			return Response{Error: "key is required"}
		}
		resp := Response{Success: true}
		if p.App != "" {
			if resp = activate(p); !resp.Success {
				return resp
			}
		}
		if _, err := runScript(buildKeystrokeScript(p.Key, p.Modifiers)); err != nil {
			return Response{Error: fmt.Sprintf("keystroke failed: %v", err), WindowSwitched: resp.WindowSwitched, WindowTitle: resp.WindowTitle}
		}
		return resp
	default:
		return Response{Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}
}

// params merges config and params; params win. The gesture context is the
// fallback target unless it is global.
func params(req Request) (Params, error) {
	var p Params
	for _, raw := range []json.RawMessage{req.Config, req.Params} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var next Params
		if err := json.Unmarshal(raw, &next); err != nil {
			return Params{}, fmt.Errorf("failed to parse params: %w", err)
		}
		if next.App != "" {
			p.App = next.App
		}
		if next.Key != "" {
			p.Key = next.Key
		}
		if next.Modifiers != nil {
			p.Modifiers = next.Modifiers
		}
	}
	if p.App == "" && req.AppContext != globalContext {
		p.App = req.AppContext
	}
	return p, nil
}

// activate brings p.App to the front and reports the frontmost window.
func activate(p Params) Response {
	if p.App == "" {
		return Response{Error: "no target application"}
	}

	running, err := runScript(fmt.Sprintf(`return %s is running`, appRef(p.App)))
	if err != nil {
		return Response{Error: fmt.Sprintf("failed to query %s: %v", p.App, err)}
	}
	if running != "true" {
		return Response{AppNotFound: true, Error: fmt.Sprintf("%s: %v", p.App, errAppNotFound)}
	}

	if _, err := runScript(fmt.Sprintf(`tell %s to activate`, appRef(p.App))); err != nil {
		return Response{Error: fmt.Sprintf("failed to activate %s: %v", p.App, err)}
	}

	// A window-less app still counts as switched.
	title, _ := runScript(frontWindowScript)
	return Response{Success: true, WindowSwitched: true, WindowTitle: title}
}

const frontWindowScript = `tell application "System Events"
	set frontApp to first application process whose frontmost is true
	tell frontApp
		if (count of windows) > 0 then return name of front window
		return name of frontApp
	end tell
end tell`

// appRef returns the AppleScript reference for an app name or bundle id.
func appRef(app string) string {
	if strings.Contains(app, ".") && !strings.ContainsAny(app, " /") {
		return fmt.Sprintf(`application id %s`, quote(app))
	}
	return fmt.Sprintf(`application %s`, quote(app))
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(key string, modifiers []string) string {
	var appleModifiers []string
	for _, mod := range modifiers {
		if appleMod, ok := modifierMap[strings.ToLower(mod)]; ok {
			appleModifiers = append(appleModifiers, appleMod)
		}
	}

	if len(appleModifiers) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke %s`, quote(key))
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke %s using {%s}`,
		quote(key), strings.Join(appleModifiers, ", "))
}

func writeResponse(w io.Writer, resp Response) {
	_ = json.NewEncoder(w).Encode(resp)
}
