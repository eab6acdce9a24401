package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// fakeScripts replaces runScript, answering by script prefix.
func fakeScripts(t *testing.T, running bool, title string) *[]string {
	t.Helper()
	var ran []string
	orig := runScript
	runScript = func(script string) (string, error) {
		ran = append(ran, script)
		switch {
		case strings.HasSuffix(script, "is running"):
			if running {
				return "true", nil
			}
			return "false", nil
		case script == frontWindowScript:
			return title, nil
		}
		return "", nil
	}
	t.Cleanup(func() { runScript = orig })
	return &ran
}

func request(t *testing.T, req Request) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(data)
}

func TestHandle_Activate(t *testing.T) {
	ran := fakeScripts(t, true, "Deck.key")

	resp := handle(request(t, Request{Action: "activate", AppContext: "com.apple.Keynote"}))

	if !resp.Success || !resp.WindowSwitched || resp.WindowTitle != "Deck.key" {
		t.Fatalf("expected switch to Deck.key, got %+v", resp)
	}
	if (*ran)[1] != `tell application id "com.apple.Keynote" to activate` {
		t.Errorf("unexpected activate script %q", (*ran)[1])
	}
}

func TestHandle_AppNotFound(t *testing.T) {
	fakeScripts(t, false, "")

	resp := handle(request(t, Request{Action: "activate", Params: json.RawMessage(`{"app":"Keynote"}`)}))

	if resp.Success || !resp.AppNotFound {
		t.Errorf("expected app_not_found, got %+v", resp)
	}
}

func TestHandle_Keystroke(t *testing.T) {
	ran := fakeScripts(t, true, "Slides")

	resp := handle(request(t, Request{
		Action:     "keystroke",
		AppContext: "Keynote",
		Params:     json.RawMessage(`{"key":"n","modifiers":["cmd","shift"]}`),
	}))

	if !resp.Success || !resp.WindowSwitched {
		t.Fatalf("expected success with switch, got %+v", resp)
	}
	last := (*ran)[len(*ran)-1]
	if last != `tell application "System Events" to keystroke "n" using {command down, shift down}` {
		t.Errorf("unexpected keystroke script %q", last)
	}
}

func TestHandle_KeystrokeGlobal(t *testing.T) {
	ran := fakeScripts(t, true, "")

	resp := handle(request(t, Request{Action: "keystroke", AppContext: globalContext, Params: json.RawMessage(`{"key":"a"}`)}))

	if !resp.Success || resp.WindowSwitched {
		t.Errorf("expected plain keystroke, got %+v", resp)
	}
	if len(*ran) != 1 {
		t.Errorf("expected only the keystroke script, ran %v", *ran)
	}
}

func TestHandle_Errors(t *testing.T) {
	fakeScripts(t, true, "")

	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{`, "failed to decode request"},
		{"unknown action", `{"action":"fly","app_context":"Keynote"}`, "unknown action"},
		{"no target", `{"action":"activate","app_context":"global"}`, "no target application"},
		{"missing key", `{"action":"keystroke","app_context":"Keynote"}`, "key is required"},
		{"bad params", `{"action":"activate","params":"nope"}`, "failed to parse params"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handle(strings.NewReader(tt.body))
			if resp.Success || !strings.Contains(resp.Error, tt.want) {
				t.Errorf("expected error containing %q, got %+v", tt.want, resp)
			}
		})
	}
}

func TestHandle_ScriptFailure(t *testing.T) {
	orig := runScript
	runScript = func(string) (string, error) { return "", errors.New("not authorized") }
	t.Cleanup(func() { runScript = orig })

	resp := handle(request(t, Request{Action: "activate", AppContext: "Keynote"}))
	if resp.Success || resp.AppNotFound || !strings.Contains(resp.Error, "not authorized") {
		t.Errorf("expected query failure, got %+v", resp)
	}
}

func TestParams_ParamsOverrideConfig(t *testing.T) {
	p, err := params(Request{
		AppContext: "Safari",
		Config:     json.RawMessage(`{"app":"Keynote","key":"x"}`),
		Params:     json.RawMessage(`{"key":"y"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.App != "Keynote" || p.Key != "y" {
		t.Errorf("expected app Keynote key y, got %+v", p)
	}
}

func TestAppRef(t *testing.T) {
	tests := map[string]string{
		"com.apple.Safari": `application id "com.apple.Safari"`,
		"Google Chrome":    `application "Google Chrome"`,
		`Say "hi"`:         `application "Say \"hi\""`,
	}
	for in, want := range tests {
		if got := appRef(in); got != want {
			t.Errorf("appRef(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestBuildKeystrokeScript(t *testing.T) {
	if got := buildKeystrokeScript("a", nil); got != `tell application "System Events" to keystroke "a"` {
		t.Errorf("unexpected script %q", got)
	}
	if got := buildKeystrokeScript("a", []string{"hyper"}); got != `tell application "System Events" to keystroke "a"` {
		t.Errorf("expected unknown modifiers dropped, got %q", got)
	}
}
