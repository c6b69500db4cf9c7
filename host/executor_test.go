package host

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/rtools-bridge/hostfuncs"
	rtwazero "github.com/reglet-dev/rtools-bridge/infrastructure/wazero"
	"github.com/reglet-dev/rtools-bridge/internal/testutil"
)

func newExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	ctx := context.Background()
	e, err := NewExecutor(ctx, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })
	return e
}

func TestNewExecutor_DefaultRegistry(t *testing.T) {
	e := newExecutor(t)
	assert.Len(t, e.registry.Names(), len(hostfuncs.AllBundles().Handlers()))
}

func TestRun_ExitStatus(t *testing.T) {
	e := newExecutor(t, WithLogger(slog.New(slog.DiscardHandler)))
	ctx := context.Background()

	require.NoError(t, e.Run(ctx, "ok", testutil.CommandModule(0)))

	err := e.Run(ctx, "failing", testutil.CommandModule(3))
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, uint32(3), exitErr.Code)
	assert.Equal(t, "failing", exitErr.Plugin)
}

func TestRun_InvalidModule(t *testing.T) {
	e := newExecutor(t)
	err := e.Run(context.Background(), "junk", []byte("not wasm"))
	require.Error(t, err)
	var exitErr *ExitError
	assert.NotErrorAs(t, err, &exitErr)
}

func TestPluginInstance_Call(t *testing.T) {
	var logs bytes.Buffer
	e := newExecutor(t, WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))
	ctx := context.Background()

	p, err := e.LoadPlugin(ctx, "tabs", testutil.GuestModule(rtwazero.DefaultModuleName))
	require.NoError(t, err)
	assert.Equal(t, "tabs", p.Name())

	input, err := json.Marshal(hostfuncs.TabExpandRequest{Strings: []string{"a\tb", "\tx"}, TabWidth: 4})
	require.NoError(t, err)
	out, err := p.Call(ctx, "call", input)
	require.NoError(t, err)

	var resp hostfuncs.TabExpandResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.EqualValues(t, []string{"a   b", "    x"}, resp.Strings)

	_, err = p.Call(ctx, "missing", nil)
	assert.ErrorContains(t, err, `export "missing" not found`)

	require.NoError(t, p.Close(ctx))
}

func TestExecutor_MaxRequestSize(t *testing.T) {
	e := newExecutor(t,
		WithMaxRequestSize(8),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	ctx := context.Background()

	p, err := e.LoadPlugin(ctx, "small", testutil.GuestModule(rtwazero.DefaultModuleName))
	require.NoError(t, err)

	out, err := p.Call(ctx, "call", []byte(`{"strings":["a"]}`))
	require.NoError(t, err)
	errResp, ok := hostfuncs.IsErrorResponse(out)
	require.True(t, ok)
	assert.Equal(t, 400, errResp.Code)
}

func TestExecutor_AllowList(t *testing.T) {
	reg, err := hostfuncs.NewRegistry(
		hostfuncs.WithMiddleware(hostfuncs.AllowListMiddleware(hostfuncs.FuncMD5)),
		hostfuncs.WithBundle(hostfuncs.TextBundle()),
	)
	require.NoError(t, err)
	e := newExecutor(t, WithHostFunctions(reg))
	ctx := context.Background()

	p, err := e.LoadPlugin(ctx, "denied", testutil.GuestModule(rtwazero.DefaultModuleName))
	require.NoError(t, err)
	out, err := p.Call(ctx, "call", []byte(`{"strings":["a"]}`))
	require.NoError(t, err)

	errResp, ok := hostfuncs.IsErrorResponse(out)
	require.True(t, ok)
	assert.Equal(t, 403, errResp.Code)
}
