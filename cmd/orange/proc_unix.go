//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// detach starts cmd in its own session with no terminal attached, so it
// outlives the console that launched it.
func detach(cmd *exec.Cmd) {
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
