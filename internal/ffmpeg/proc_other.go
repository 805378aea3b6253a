//go:build !unix

package ffmpeg

import (
	"os/exec"

	"smoothy/internal/metrics"
)

// configureProcessGroup falls back to killing the direct child only.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		metrics.ProcessKillsTotal.Inc()
		return cmd.Process.Kill()
	}
}
