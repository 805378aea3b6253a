//go:build unix

package ffmpeg

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"smoothy/internal/logging"
	"smoothy/internal/metrics"
)

// configureProcessGroup starts cmd in its own process group and makes
// context cancellation kill the whole group, including any helpers ffmpeg
// spawned.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		pid := cmd.Process.Pid
		metrics.ProcessKillsTotal.Inc()
		err := unix.Kill(-pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		if err != nil {
			logging.Warn("Failed to kill process group %d: %v", pid, err)
			return cmd.Process.Kill()
		}
		logging.Debug("Killed process group %d", pid)
		return nil
	}
}
