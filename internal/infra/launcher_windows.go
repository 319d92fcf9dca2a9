//go:build windows

package infra

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// detachedCommand starts path in a new process group with no console.
// Minimized launches go through `start /MIN`, which needs a raw command line.
func detachedCommand(path string, args []string, minimized bool) *exec.Cmd {
	flags := uint32(windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS)

	if !minimized {
		cmd := exec.Command(path, args...)
		cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: flags}
		return cmd
	}

	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, windows.EscapeArg(a))
	}
	cmd := exec.Command("cmd.exe")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: flags,
		HideWindow:    true,
		CmdLine:       strings.TrimSpace(fmt.Sprintf(`cmd.exe /C start "" /MIN "%s" %s`, path, strings.Join(quoted, " "))),
	}
	return cmd
}
