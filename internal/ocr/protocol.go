// Package ocr drives the OCR subprocess over its line protocol.
//
// The subprocess writes structured events to stdout as `OCRMSG:{json}` lines and
// reads commands from stdin as `OCRCMD:{json}` lines. Anything else on stdout is
// plain log text.
package ocr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Line prefixes.
const (
	MessagePrefix = "OCRMSG:"
	CommandPrefix = "OCRCMD:"
)

// Event names emitted by the OCR subprocess.
type Event string

const (
	EventStarted            Event = "started"
	EventStopped            Event = "stopped"
	EventPaused             Event = "paused"
	EventUnpaused           Event = "unpaused"
	EventStatus             Event = "status"
	EventError              Event = "error"
	EventOCRResult          Event = "ocr_result"
	EventConfigReloaded     Event = "config_reloaded"
	EventForceStableChanged Event = "force_stable_changed"
)

// CommandName is a command understood by the OCR subprocess.
type CommandName string

const (
	CmdPause             CommandName = "pause"
	CmdUnpause           CommandName = "unpause"
	CmdTogglePause       CommandName = "toggle_pause"
	CmdGetStatus         CommandName = "get_status"
	CmdManualOCR         CommandName = "manual_ocr"
	CmdReloadConfig      CommandName = "reload_config"
	CmdStop              CommandName = "stop"
	CmdToggleForceStable CommandName = "toggle_force_stable"
	CmdSetForceStable    CommandName = "set_force_stable"
)

// Message is one structured event from the subprocess.
type Message struct {
	Event Event          `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
	ID    string         `json:"id,omitempty"`
}

// Command is one instruction to the subprocess.
type Command struct {
	Command CommandName    `json:"command"`
	Data    map[string]any `json:"data,omitempty"`
	ID      string         `json:"id,omitempty"`
}

// ParseLine classifies one stdout line. ok is false for plain log text.
// A prefixed line with an undecodable payload returns ok=true and an error.
func ParseLine(line string) (msg Message, ok bool, err error) {
	line = strings.TrimRight(line, "\r\n")
	payload, found := strings.CutPrefix(line, MessagePrefix)
	if !found {
		return Message{}, false, nil
	}
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return Message{}, true, fmt.Errorf("failed to decode OCR message: %w", err)
	}
	if msg.Event == "" {
		return Message{}, true, fmt.Errorf("OCR message without event: %q", payload)
	}
	return msg, true, nil
}

// EncodeCommand renders cmd as a newline-terminated command line.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd.Command == "" {
		return nil, fmt.Errorf("empty OCR command")
	}
	raw, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode OCR command: %w", err)
	}
	line := make([]byte, 0, len(CommandPrefix)+len(raw)+1)
	line = append(line, CommandPrefix...)
	line = append(line, raw...)
	return append(line, '\n'), nil
}

// ErrorText extracts the error description from an error event.
func (m Message) ErrorText() string {
	if s, ok := m.Data["error"].(string); ok && s != "" {
		return s
	}
	return "unknown error"
}
