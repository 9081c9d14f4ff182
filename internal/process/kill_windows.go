//go:build windows

package process

import (
	"os/exec"
	"strconv"
)

// KillTree force-terminates pid and its child processes with taskkill.
func KillTree(pid int) error {
	if pid <= 0 {
		return ErrInvalidPID
	}
	return exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
