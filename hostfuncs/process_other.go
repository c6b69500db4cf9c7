//go:build !unix

package hostfuncs

import (
	"errors"
	"os"
	"syscall"

	"github.com/reglet-dev/rtools-bridge/domain/ports"
)

var errUnsupported = errors.New("not supported on this platform")

// systemProcesses supports only forced termination on non-unix hosts.
type systemProcesses struct{}

// SystemProcesses returns the OS-backed process controller.
func SystemProcesses() ports.ProcessController {
	return systemProcesses{}
}

func (systemProcesses) Signal(pid int, sig syscall.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if sig == syscall.SIGKILL || sig == syscall.SIGTERM {
		return p.Kill()
	}
	return errUnsupported
}

func (systemProcesses) Priority(int) (int, error) {
	return 0, errUnsupported
}

func (systemProcesses) SetPriority(int, int) error {
	return errUnsupported
}

func signalTable() map[string]int {
	return map[string]int{
		"SIGINT":  int(syscall.SIGINT),
		"SIGKILL": int(syscall.SIGKILL),
		"SIGTERM": int(syscall.SIGTERM),
	}
}
