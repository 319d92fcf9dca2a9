package policy

import (
	"path/filepath"
	"strings"
)

// SwitchScriptPrefix marks scripts that only apply to Switch emulator targets.
const SwitchScriptPrefix = "NS_"

// SwitchEmulatorHints are substrings identifying Switch emulators and their forks
// in a process name or window title.
var SwitchEmulatorHints = []string{
	"yuzu",
	"suyu",
	"ryujinx",
	"eden",
	"citron",
	"sudachi",
	"torzu",
}

// IsSwitchEmulatorTarget reports whether the process name or window title names a
// known Switch emulator.
func IsSwitchEmulatorTarget(processName, windowTitle string) bool {
	base := ""
	if processName != "" {
		base = filepath.Base(strings.ReplaceAll(processName, `\`, "/"))
	}
	haystacks := []string{strings.ToLower(base), strings.ToLower(windowTitle)}
	for _, h := range haystacks {
		if h == "" {
			continue
		}
		for _, hint := range SwitchEmulatorHints {
			if strings.Contains(h, hint) {
				return true
			}
		}
	}
	return false
}

// IsSwitchScript reports whether a script file name carries the Switch prefix.
func IsSwitchScript(fileName string) bool {
	return strings.HasPrefix(strings.ToUpper(fileName), SwitchScriptPrefix)
}
