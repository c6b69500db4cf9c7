package hostfuncs

import (
	"context"
	"strconv"
	"syscall"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
	"github.com/reglet-dev/rtools-bridge/domain/ports"
)

// KillRequest contains the processes to signal.
type KillRequest struct {
	// PIDs are the target process ids.
	PIDs []int `json:"pids"`

	// Signal is the signal number. Zero only checks that each process exists.
	Signal int `json:"signal" validate:"gte=0,lte=64"`
}

// PIDStatus is the outcome of a process operation on one pid.
type PIDStatus struct {
	// Error is set when the operation failed for this pid.
	Error *entities.ErrorDetail `json:"error,omitempty"`

	// PID is the target process id.
	PID int `json:"pid"`

	// Priority is the priority read before any change (priority requests only).
	Priority int `json:"priority,omitempty"`

	// OK reports success for this pid.
	OK bool `json:"ok"`
}

// KillResponse holds one status per requested pid, in request order.
type KillResponse struct {
	Statuses []PIDStatus `json:"statuses"`
}

// PriorityRequest reads, and optionally sets, scheduling priorities.
type PriorityRequest struct {
	// Value, when non-nil, is the new priority to apply after reading.
	Value *int `json:"value,omitempty" validate:"omitempty,gte=-20,lte=19"`

	// PIDs are the target process ids.
	PIDs []int `json:"pids"`
}

// PriorityResponse holds one status per requested pid.
type PriorityResponse struct {
	Statuses []PIDStatus `json:"statuses"`
}

// SignalsResponse lists the signals known to the host OS.
type SignalsResponse struct {
	// Signals maps a signal name (e.g. "SIGTERM") to its number, or -1 when
	// the OS does not define it.
	Signals map[string]int `json:"signals"`
}

// signalNames is the fixed set of signals reported by PerformSignals.
var signalNames = []string{
	"SIGHUP", "SIGINT", "SIGQUIT", "SIGKILL", "SIGTERM", "SIGSTOP",
	"SIGTSTP", "SIGCONT", "SIGCHLD", "SIGUSR1", "SIGUSR2",
}

// ProcessOption is a functional option for process host functions.
type ProcessOption func(*processConfig)

type processConfig struct {
	controller ports.ProcessController
}

func defaultProcessConfig() processConfig {
	return processConfig{controller: SystemProcesses()}
}

// WithProcessController replaces the OS process adapter.
func WithProcessController(c ports.ProcessController) ProcessOption {
	return func(cfg *processConfig) {
		if c != nil {
			cfg.controller = c
		}
	}
}

// PerformKill sends a signal to every pid and reports a status per pid.
// A missing process is reported in its own status and never fails the batch.
func PerformKill(_ context.Context, req KillRequest, opts ...ProcessOption) KillResponse {
	cfg := defaultProcessConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	resp := KillResponse{Statuses: make([]PIDStatus, len(req.PIDs))}
	for i, pid := range req.PIDs {
		st := PIDStatus{PID: pid}
		if err := checkPID(pid); err != nil {
			st.Error = bridgeerrors.ToErrorDetail(err)
		} else if err := cfg.controller.Signal(pid, syscall.Signal(req.Signal)); err != nil {
			st.Error = bridgeerrors.ToErrorDetail(bridgeerrors.Classify("kill", strconv.Itoa(pid), err))
		} else {
			st.OK = true
		}
		resp.Statuses[i] = st
	}
	return resp
}

// PerformPriority reads the priority of every pid and, if req.Value is set,
// applies the new value. The returned priority is always the one read before
// the change.
func PerformPriority(_ context.Context, req PriorityRequest, opts ...ProcessOption) PriorityResponse {
	cfg := defaultProcessConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	resp := PriorityResponse{Statuses: make([]PIDStatus, len(req.PIDs))}
	for i, pid := range req.PIDs {
		st := PIDStatus{PID: pid}
		resp.Statuses[i] = st
		if err := checkPID(pid); err != nil {
			resp.Statuses[i].Error = bridgeerrors.ToErrorDetail(err)
			continue
		}
		prio, err := cfg.controller.Priority(pid)
		if err != nil {
			resp.Statuses[i].Error = bridgeerrors.ToErrorDetail(bridgeerrors.Classify("getpriority", strconv.Itoa(pid), err))
			continue
		}
		resp.Statuses[i].Priority = prio
		if req.Value != nil {
			if err := cfg.controller.SetPriority(pid, *req.Value); err != nil {
				resp.Statuses[i].Error = bridgeerrors.ToErrorDetail(bridgeerrors.Classify("setpriority", strconv.Itoa(pid), err))
				continue
			}
		}
		resp.Statuses[i].OK = true
	}
	return resp
}

// PerformSignals returns the signal table of the host OS.
func PerformSignals(_ context.Context) SignalsResponse {
	table := signalTable()
	resp := SignalsResponse{Signals: make(map[string]int, len(signalNames))}
	for _, name := range signalNames {
		if n, ok := table[name]; ok {
			resp.Signals[name] = n
		} else {
			resp.Signals[name] = -1
		}
	}
	return resp
}

// SignalNames returns the signal names reported by PerformSignals, in order.
func SignalNames() []string {
	out := make([]string, len(signalNames))
	copy(out, signalNames)
	return out
}

func checkPID(pid int) error {
	if pid <= 0 {
		return &bridgeerrors.InvalidArgumentError{Argument: "pid", Reason: "must be a positive process id, got " + strconv.Itoa(pid)}
	}
	return nil
}
