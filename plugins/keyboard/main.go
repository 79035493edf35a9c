// Package main provides the keyboard plugin. It sends keystrokes to the
// focused application: AppleScript on macOS, xdotool elsewhere.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Target string          `json:"target"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// KeystrokeParams defines parameters for keystroke and shortcut actions.
type KeystrokeParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// namedKey is a key that has no printable character.
type namedKey struct {
	macCode int    // System Events key code
	xName   string // X keysym
}

var namedKeys = map[string]namedKey{
	"pagedown": {macCode: 121, xName: "Next"},
	"pageup":   {macCode: 116, xName: "Prior"},
	"left":     {macCode: 123, xName: "Left"},
	"right":    {macCode: 124, xName: "Right"},
	"up":       {macCode: 126, xName: "Up"},
	"down":     {macCode: 125, xName: "Down"},
	"space":    {macCode: 49, xName: "space"},
	"return":   {macCode: 36, xName: "Return"},
	"escape":   {macCode: 53, xName: "Escape"},
	"home":     {macCode: 115, xName: "Home"},
	"end":      {macCode: 119, xName: "End"},
}

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

// xModifierMap maps modifier names to xdotool key prefixes.
var xModifierMap = map[string]string{
	"command": "super",
	"cmd":     "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

func main() {
	json.NewEncoder(os.Stdout).Encode(handle(os.Stdin, runtime.GOOS, run))
}

// handle decodes one request and performs it with runCmd.
func handle(in io.Reader, goos string, runCmd func(name string, args ...string) error) Response {
	var req Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return errorResponse(fmt.Sprintf("failed to decode request: %v", err))
	}

	switch req.Action {
	case "keystroke", "shortcut":
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}

	var p KeystrokeParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(fmt.Sprintf("failed to parse params: %v", err))
	}
	if p.Key == "" {
		return errorResponse("key is required")
	}

	name, args := command(goos, p.Key, p.Modifiers)
	if err := runCmd(name, args...); err != nil {
		return errorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
	}
	return Response{Success: true}
}

// command returns the program and arguments that press key on goos.
func command(goos, key string, modifiers []string) (string, []string) {
	if goos == "darwin" {
		return "osascript", []string{"-e", buildKeystrokeScript(key, modifiers)}
	}
	return "xdotool", []string{"key", buildXdotoolChord(key, modifiers)}
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(key string, modifiers []string) string {
	press := fmt.Sprintf(`keystroke "%s"`, key)
	if k, ok := namedKeys[strings.ToLower(key)]; ok {
		press = fmt.Sprintf("key code %d", k.macCode)
	}

	var appleModifiers []string
	for _, mod := range modifiers {
		if appleMod, ok := modifierMap[strings.ToLower(mod)]; ok {
			appleModifiers = append(appleModifiers, appleMod)
		}
	}

	if len(appleModifiers) == 0 {
		return fmt.Sprintf(`tell application "System Events" to %s`, press)
	}
	return fmt.Sprintf(`tell application "System Events" to %s using {%s}`, press, strings.Join(appleModifiers, ", "))
}

// buildXdotoolChord generates an xdotool key chord such as "ctrl+shift+Next".
func buildXdotoolChord(key string, modifiers []string) string {
	if k, ok := namedKeys[strings.ToLower(key)]; ok {
		key = k.xName
	}

	parts := make([]string, 0, len(modifiers)+1)
	for _, mod := range modifiers {
		if xMod, ok := xModifierMap[strings.ToLower(mod)]; ok {
			parts = append(parts, xMod)
		}
	}
	return strings.Join(append(parts, key), "+")
}

func errorResponse(msg string) Response {
	return Response{Success: false, Error: msg}
}

// run executes a command and folds its output into the error.
func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%s is not installed", name)
	}
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
