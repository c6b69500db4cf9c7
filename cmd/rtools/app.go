package main

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/reglet-dev/rtools-bridge/application/config"
	"github.com/reglet-dev/rtools-bridge/bridge"
	"github.com/reglet-dev/rtools-bridge/hostfuncs"
	"github.com/reglet-dev/rtools-bridge/httpd"
	"github.com/reglet-dev/rtools-bridge/infrastructure/tracer"
	"github.com/reglet-dev/rtools-bridge/metrics"
)

// app wires the configured components together.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	server  *httpd.Server
	reg     *hostfuncs.HandlerRegistry
	bridge  *bridge.Bridge
}

func newApp(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: m}

	a.server = httpd.New(httpd.Config{
		Logger:          logger,
		Metrics:         m,
		DocRoot:         cfg.HTTPD.DocRoot,
		RateLimit:       cfg.HTTPD.RateLimit,
		Burst:           cfg.HTTPD.Burst,
		ShutdownTimeout: cfg.HTTPD.ShutdownTimeout,
	})
	httpd.SetDefault(a.server)

	reg, err := hostfuncs.NewRegistry(a.registryOptions(cfg.Allow, a.builtins())...)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	a.reg = reg

	a.bridge, err = bridge.New(reg,
		bridge.WithLogger(logger),
		bridge.WithTabWidth(cfg.Tabs.Width),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) builtins() hostfuncs.HostFuncBundle {
	return hostfuncs.Bundles(
		hostfuncs.TextBundle(),
		hostfuncs.FileBundle(hostfuncs.WithAppendHeader(a.cfg.Append.Separator)),
		hostfuncs.ProcessBundle(),
		hostfuncs.HTTPDBundle(hostfuncs.WithServer(a.server)),
		hostfuncs.DocsBundle(),
	)
}

func (a *app) registryOptions(allow []string, bundle hostfuncs.HostFuncBundle) []hostfuncs.RegistryOption {
	return []hostfuncs.RegistryOption{
		hostfuncs.WithMiddleware(
			hostfuncs.PanicRecoveryMiddleware(),
			hostfuncs.TracingMiddleware(tracer.Tracer()),
			hostfuncs.SlogMiddleware(a.logger),
			hostfuncs.MetricsMiddleware(a.metrics),
			hostfuncs.AllowListMiddleware(allow...),
		),
		hostfuncs.WithBundle(bundle),
	}
}

// pluginRegistry exposes the host functions and the bridge slots to guests.
func (a *app) pluginRegistry() (*hostfuncs.HandlerRegistry, error) {
	allow := a.cfg.Allow
	if len(allow) > 0 {
		// Slots dispatch through a.reg, which filters the functions behind them.
		allow = append(slices.Clone(allow), a.bridge.HandlerNames()...)
	}
	return hostfuncs.NewRegistry(a.registryOptions(allow, hostfuncs.Bundles(a.builtins(), a.bridge))...)
}
