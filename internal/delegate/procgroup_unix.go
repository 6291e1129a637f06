//go:build unix

package delegate

import (
	"os/exec"
	"syscall"
)

// setProcessGroup はエージェントと子プロセス（git など）を独立したグループにする。
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateGroup はグループ全体に SIGTERM を送る。
func terminateGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
