package ports

import "syscall"

// ProcessController defines the OS process operations used by the process
// host functions. The system adapter lives in hostfuncs; tests substitute fakes.
type ProcessController interface {
	// Signal sends sig to pid.
	Signal(pid int, sig syscall.Signal) error

	// Priority returns the scheduling priority (nice value) of pid.
	Priority(pid int) (int, error)

	// SetPriority sets the scheduling priority of pid.
	SetPriority(pid int, prio int) error
}
