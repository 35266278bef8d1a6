//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr starts the child in its own session so it outlives the terminal
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
