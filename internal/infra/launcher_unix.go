//go:build !windows

package infra

import (
	"os/exec"
	"syscall"
)

// detachedCommand starts path in its own session. minimized has no meaning here.
func detachedCommand(path string, args []string, minimized bool) *exec.Cmd {
	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd
}
