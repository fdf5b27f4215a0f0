//go:build !windows

package daemon

import "syscall"

// processAlive uses signal 0, which checks existence without delivering.
// EPERM still means the process exists.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}

func signalPID(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}
