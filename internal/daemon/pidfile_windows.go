//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// processAlive relies on Signal(0) failing for an exited process, since
// FindProcess opens a handle for any PID on Windows.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// signalPID can only terminate on Windows; every signal but 0 kills.
func signalPID(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return proc.Signal(sig)
}
