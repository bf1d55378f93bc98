//go:build unix

package session

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// setProcAttr puts the tool in its own process group so that everything it
// spawns dies with it.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (p *proc) kill() {
	if p.cmd.Process == nil {
		return
	}
	if err := unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		p.runner.logf("merlin: failed to kill process group %v: %v", p.cmd.Process.Pid, err)
		p.cmd.Process.Kill()
	}
}

func isTransient(err error) bool {
	return xerrors.Is(err, unix.ETXTBSY) || xerrors.Is(err, unix.EAGAIN)
}

func isBrokenPipe(err error) bool {
	return xerrors.Is(err, unix.EPIPE)
}
