// Command rtools exposes the bridge slots, the help server and the WASM
// plugin host from the command line.
//
// Usage:
//
//	rtools [-config file] call <symbol> [json-args | -]
//	rtools [-config file] describe
//	rtools [-config file] httpd
//	rtools [-config file] run <plugin.wasm> [args...]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/reglet-dev/rtools-bridge/application/config"
	"github.com/reglet-dev/rtools-bridge/domain/entities"
	"github.com/reglet-dev/rtools-bridge/host"
	"github.com/reglet-dev/rtools-bridge/infrastructure/tracer"
	rlog "github.com/reglet-dev/rtools-bridge/log"
	"github.com/reglet-dev/rtools-bridge/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// errUsage marks errors caused by bad command-line input.
var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rtools", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("RTOOLS_CONFIG"), "config file (.yaml, .yml or .toml)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: rtools [-config file] <call|describe|httpd|run> [args]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "rtools: %v\n", err)
		return 1
	}
	logger, closeLog, err := rlog.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "rtools: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	shutdownTracer, err := tracer.Setup(cfg.Trace, stderr)
	if err != nil {
		logger.Error("tracer setup failed", "error", err)
		return 1
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	a, err := newApp(cfg, logger, metrics.Default)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "call":
		err = a.call(ctx, rest, stdin, stdout)
	case "describe":
		err = a.describe(stdout)
	case "httpd":
		err = a.serve(ctx)
	case "run":
		err = a.runPlugin(ctx, rest, stdout, stderr)
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "rtools: %v\n", err)
			return 2
		}
		logger.Error(cmd+" failed", "error", err)
		return 1
	}
	return 0
}

// call invokes one slot with a JSON array of values and prints the result.
// A condition result is printed and reported as a failure.
func (a *app) call(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("%w: call <symbol> [json-args | -]", errUsage)
	}
	raw := "[]"
	if len(args) == 2 {
		raw = args[1]
		if raw == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return fmt.Errorf("read arguments: %w", err)
			}
			raw = string(data)
		}
	}
	var vals []entities.Value
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &vals); err != nil {
		return fmt.Errorf("%w: arguments must be a JSON array of values: %v", errUsage, err)
	}

	result := a.bridge.Call(ctx, args[0], vals...)
	if err := writeJSON(stdout, result); err != nil {
		return err
	}
	if result.IsCondition() {
		return fmt.Errorf("%s: %s", args[0], result.Condition.Message)
	}
	return nil
}

func (a *app) describe(stdout io.Writer) error {
	slots, err := a.bridge.Describe()
	if err != nil {
		return err
	}
	return writeJSON(stdout, slots)
}

// serve runs the help server on the configured address until ctx ends.
func (a *app) serve(ctx context.Context) error {
	st, err := a.server.Start(a.cfg.HTTPD.IP, a.cfg.HTTPD.Port)
	if err != nil {
		return err
	}
	a.logger.Info("serving help", "addr", st.Addr)
	<-ctx.Done()
	return a.server.Stop(context.Background())
}

func (a *app) runPlugin(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: run <plugin.wasm> [args...]", errUsage)
	}
	wasmBytes, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read plugin: %w", err)
	}
	reg, err := a.pluginRegistry()
	if err != nil {
		return err
	}

	exec, err := host.NewExecutor(ctx,
		host.WithHostFunctions(reg),
		host.WithLogger(a.logger),
		host.WithMaxRequestSize(a.cfg.Limits.MaxRequestSize),
		host.WithOutput(stdout, stderr),
	)
	if err != nil {
		return err
	}
	defer exec.Close(context.Background())
	defer a.server.Stop(context.Background()) //nolint:errcheck // best effort if the plugin started it

	name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	return exec.Run(ctx, name, wasmBytes, args[1:]...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
