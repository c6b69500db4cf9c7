//go:build unix

package hostfuncs

import (
	"runtime"
	"syscall"

	"github.com/reglet-dev/rtools-bridge/domain/ports"
	"golang.org/x/sys/unix"
)

// systemProcesses is the ProcessController backed by the host kernel.
type systemProcesses struct{}

// SystemProcesses returns the OS-backed process controller.
func SystemProcesses() ports.ProcessController {
	return systemProcesses{}
}

func (systemProcesses) Signal(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}

func (systemProcesses) Priority(pid int) (int, error) {
	prio, err := unix.Getpriority(unix.PRIO_PROCESS, pid)
	if err != nil {
		return 0, err
	}
	// The raw Linux syscall returns 20-nice to avoid negative results.
	if runtime.GOOS == "linux" {
		prio = 20 - prio
	}
	return prio, nil
}

func (systemProcesses) SetPriority(pid int, prio int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, pid, prio)
}

func signalTable() map[string]int {
	return map[string]int{
		"SIGHUP":  int(unix.SIGHUP),
		"SIGINT":  int(unix.SIGINT),
		"SIGQUIT": int(unix.SIGQUIT),
		"SIGKILL": int(unix.SIGKILL),
		"SIGTERM": int(unix.SIGTERM),
		"SIGSTOP": int(unix.SIGSTOP),
		"SIGTSTP": int(unix.SIGTSTP),
		"SIGCONT": int(unix.SIGCONT),
		"SIGCHLD": int(unix.SIGCHLD),
		"SIGUSR1": int(unix.SIGUSR1),
		"SIGUSR2": int(unix.SIGUSR2),
	}
}
