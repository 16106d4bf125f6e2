//go:build linux || darwin

package main

import (
	"os"
	"os/exec"
	"syscall"
)

// detach re-executes the daemon in its own session with -f appended,
// the portable rendition of classic daemonization. The parent returns
// once the child has started.
func detach() error {
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer devnull.Close()

	args := append([]string{"-f"}, os.Args[1:]...)
	cmd := exec.Command(os.Args[0], args...)
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd.Start()
}
