//go:build unix

package upstream

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcAttr puts the CLI in its own process group so its tool subprocesses die with it.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killGroup(p *os.Process) error {
	if p == nil {
		return nil
	}
	return syscall.Kill(-p.Pid, syscall.SIGKILL)
}
