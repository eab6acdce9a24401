// Package main provides the system-control plugin for macOS: volume,
// brightness and media keys. Its actions ignore the gesture context, so it
// is what global gestures are usually bound to.
package main

import (
	"encoding/json"
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
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Params tunes volume steps, in percent.
type Params struct {
	Step int `json:"step"`
}

const defaultStep = 10

// keyCode presses a special key through System Events.
func keyCode(code int) string {
	return fmt.Sprintf("tell application \"System Events\"\n\tkey code %d\nend tell", code)
}

// scripts builds the AppleScript for each action.
var scripts = map[string]func(p Params) string{
	"volume-up": func(p Params) string {
		return fmt.Sprintf(`set volume output volume ((output volume of (get volume settings)) + %d)`, p.Step)
	},
	"volume-down": func(p Params) string {
		return fmt.Sprintf(`set volume output volume ((output volume of (get volume settings)) - %d)`, p.Step)
	},
	"volume-mute": func(Params) string {
		return `set volume output muted (not (output muted of (get volume settings)))`
	},
	"brightness-up":    func(Params) string { return keyCode(144) },
	"brightness-down":  func(Params) string { return keyCode(145) },
	"media-play-pause": func(Params) string { return keyCode(100) },
	"media-next":       func(Params) string { return keyCode(101) },
	"media-prev":       func(Params) string { return keyCode(98) },
}

// runScript executes one AppleScript.
var runScript = func(script string) error {
	out, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func main() {
	_ = json.NewEncoder(os.Stdout).Encode(handle(os.Stdin))
}

func handle(r io.Reader) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	build, ok := scripts[req.Action]
	if !ok {
		return Response{Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}

	p := Params{Step: defaultStep}
	if len(req.Params) > 0 && string(req.Params) != "null" {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return Response{Error: fmt.Sprintf("failed to parse params: %v", err)}
		}
		if p.Step <= 0 || p.Step > 100 {
			p.Step = defaultStep
		}
	}

	if err := runScript(build(p)); err != nil {
		return Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)}
	}
	return Response{Success: true}
}
