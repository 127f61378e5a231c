//go:build !windows

package testrun

import (
	"os/exec"
	"syscall"
	"time"
)

// setProcGroup configures cmd to run in its own process group and sets up
// Cancel/WaitDelay so that the timeout kills the entire group (including
// grandchildren spawned by test runners) rather than only the direct child.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// SIGKILL the entire process group (negative PID).
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	// Grace period for children to drain after the group is killed before
	// their pipe file descriptors are forcibly closed.
	cmd.WaitDelay = 3 * time.Second
}
