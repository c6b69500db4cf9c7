package hostfuncs

import (
	"context"
	"os"
	"runtime"
	"syscall"
	"testing"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcesses is an in-memory process table.
type fakeProcesses struct {
	prio    map[int]int
	denied  map[int]bool
	signals map[int][]syscall.Signal
}

func newFakeProcesses(pids ...int) *fakeProcesses {
	f := &fakeProcesses{prio: map[int]int{}, denied: map[int]bool{}, signals: map[int][]syscall.Signal{}}
	for _, pid := range pids {
		f.prio[pid] = 0
	}
	return f
}

func (f *fakeProcesses) lookup(pid int) error {
	if _, ok := f.prio[pid]; !ok {
		return syscall.ESRCH
	}
	if f.denied[pid] {
		return syscall.EPERM
	}
	return nil
}

func (f *fakeProcesses) Signal(pid int, sig syscall.Signal) error {
	if err := f.lookup(pid); err != nil {
		return err
	}
	f.signals[pid] = append(f.signals[pid], sig)
	return nil
}

func (f *fakeProcesses) Priority(pid int) (int, error) {
	if _, ok := f.prio[pid]; !ok {
		return 0, syscall.ESRCH
	}
	return f.prio[pid], nil
}

func (f *fakeProcesses) SetPriority(pid, prio int) error {
	if err := f.lookup(pid); err != nil {
		return err
	}
	f.prio[pid] = prio
	return nil
}

func TestPerformKill_PerPIDStatus(t *testing.T) {
	procs := newFakeProcesses(100, 200, 300)
	procs.denied[200] = true

	resp := PerformKill(context.Background(),
		KillRequest{PIDs: []int{100, 200, 999, 300, -4}, Signal: 15},
		WithProcessController(procs))

	require.Len(t, resp.Statuses, 5)
	assert.True(t, resp.Statuses[0].OK)

	assert.False(t, resp.Statuses[1].OK)
	assert.Equal(t, entities.ErrorTypePermissionDenied, resp.Statuses[1].Error.Type)

	assert.False(t, resp.Statuses[2].OK)
	assert.Equal(t, entities.ErrorTypeFileNotFound, resp.Statuses[2].Error.Type)

	assert.True(t, resp.Statuses[3].OK, "a failure must not stop later pids")
	assert.Equal(t, entities.ErrorTypeInvalidArgument, resp.Statuses[4].Error.Type)

	assert.Equal(t, []syscall.Signal{15}, procs.signals[100])
	assert.Equal(t, []syscall.Signal{15}, procs.signals[300])
	assert.Empty(t, procs.signals[200])
}

func TestPerformKill_Empty(t *testing.T) {
	resp := PerformKill(context.Background(), KillRequest{Signal: 15}, WithProcessController(newFakeProcesses()))
	assert.NotNil(t, resp.Statuses)
	assert.Empty(t, resp.Statuses)
}

func TestPerformKill_System(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signal 0 probing is unix only")
	}

	// Signal 0 checks existence without delivering anything.
	resp := PerformKill(context.Background(), KillRequest{PIDs: []int{os.Getpid(), 1 << 30}, Signal: 0})
	require.Len(t, resp.Statuses, 2)
	assert.True(t, resp.Statuses[0].OK)
	require.NotNil(t, resp.Statuses[1].Error)
	assert.Equal(t, entities.ErrorTypeFileNotFound, resp.Statuses[1].Error.Type)
}

func TestPerformPriority(t *testing.T) {
	procs := newFakeProcesses(10, 20)
	procs.prio[10] = 5
	procs.denied[20] = true

	value := 10
	resp := PerformPriority(context.Background(),
		PriorityRequest{PIDs: []int{10, 20, 30}, Value: &value},
		WithProcessController(procs))

	require.Len(t, resp.Statuses, 3)
	assert.True(t, resp.Statuses[0].OK)
	assert.Equal(t, 5, resp.Statuses[0].Priority, "old priority is reported")
	assert.Equal(t, 10, procs.prio[10])

	assert.False(t, resp.Statuses[1].OK)
	assert.Equal(t, entities.ErrorTypePermissionDenied, resp.Statuses[1].Error.Type)
	assert.Equal(t, 0, procs.prio[20])

	assert.Equal(t, entities.ErrorTypeFileNotFound, resp.Statuses[2].Error.Type)
}

func TestPerformPriority_ReadOnly(t *testing.T) {
	procs := newFakeProcesses(10)
	procs.prio[10] = -3

	resp := PerformPriority(context.Background(), PriorityRequest{PIDs: []int{10}}, WithProcessController(procs))
	require.True(t, resp.Statuses[0].OK)
	assert.Equal(t, -3, resp.Statuses[0].Priority)
	assert.Equal(t, -3, procs.prio[10])
}

func TestPerformSignals(t *testing.T) {
	resp := PerformSignals(context.Background())
	assert.Len(t, resp.Signals, len(SignalNames()))
	assert.Equal(t, int(syscall.SIGKILL), resp.Signals["SIGKILL"])
	assert.Equal(t, int(syscall.SIGTERM), resp.Signals["SIGTERM"])
}

func TestSignalNames_ReturnsCopy(t *testing.T) {
	names := SignalNames()
	names[0] = "changed"
	assert.Equal(t, "SIGHUP", SignalNames()[0])
}
