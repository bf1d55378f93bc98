//go:build !unix

package session

import (
	"os/exec"
	"syscall"

	"golang.org/x/xerrors"
)

func setProcAttr(cmd *exec.Cmd) {}

func (p *proc) kill() {
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
}

func isTransient(err error) bool {
	return false
}

func isBrokenPipe(err error) bool {
	return xerrors.Is(err, syscall.EPIPE)
}
