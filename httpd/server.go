// Package httpd implements the process-wide help server started and stopped
// by the startHTTPD/stopHTTPD host functions.
//
// The listener is singleton state: every start and stop is serialised behind
// one mutex, starting an already-running server on the same address is a
// no-op, and Stop does not return until the listening socket is closed and
// the serve goroutine has exited.
package httpd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
	"github.com/reglet-dev/rtools-bridge/metrics"
)

// DefaultShutdownTimeout bounds how long Stop waits for in-flight requests
// before closing connections forcibly.
const DefaultShutdownTimeout = 5 * time.Second

// Config configures a Server.
type Config struct {
	// Logger receives request and lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics receives request metrics. Defaults to metrics.Default.
	Metrics *metrics.Metrics

	// DocRoot is served under /doc/. Empty disables the route.
	DocRoot string

	// RateLimit is the sustained requests per second; zero disables limiting.
	RateLimit float64

	// Burst is the limiter bucket size. Defaults to 1 when RateLimit is set.
	Burst int

	// ShutdownTimeout bounds graceful shutdown. Defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

// Status describes the listener.
type Status struct {
	Started time.Time `json:"started,omitempty"`
	IP      string    `json:"ip,omitempty"`
	Addr    string    `json:"addr,omitempty"`
	Port    int       `json:"port,omitempty"`
	Running bool      `json:"running"`
}

// Server is the help server. The zero value is not usable; call New.
type Server struct {
	cfg Config

	mu     sync.Mutex // serialises Start/Stop and guards the fields below
	srv    *http.Server
	done   chan struct{}
	status Status
	// requested address as passed to Start, used for idempotence checks
	reqIP   string
	reqPort int

	// snapshot mirrors status for readers that must not take mu, such as
	// request handlers running while Stop waits for them.
	snapshot atomic.Pointer[Status]

	handlers *handlerTable
}

// New creates a stopped server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.RateLimit > 0 && cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	s := &Server{cfg: cfg, handlers: newHandlerTable()}
	s.snapshot.Store(&Status{})
	return s
}

var (
	defaultMu     sync.Mutex
	defaultServer *Server
)

// Default returns the process-wide server used by the host functions.
func Default() *Server {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultServer == nil {
		defaultServer = New(Config{})
	}
	return defaultServer
}

// SetDefault replaces the process-wide server, typically from main after
// loading configuration. The previous server is not stopped.
func SetDefault(s *Server) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultServer = s
}

// Handle registers h for requests under /custom/<name>/. Registering the
// same name again replaces the previous handler. A nil handler removes it.
// Handlers may be registered while the server is running.
func (s *Server) Handle(name string, h http.Handler) {
	s.handlers.set(name, h)
}

// Start binds ip:port and serves in a background goroutine.
//
// If the server is already running on the requested address the current
// status is returned without error. Running on a different address is an
// InvalidArgumentError. A port of 0 picks a free port; the chosen port is
// reported in the status, and a later Start with port 0 and the same ip is
// treated as the same address.
func (s *Server) Start(ip string, port int) (Status, error) {
	if port < 0 || port > 65535 {
		return Status{}, &bridgeerrors.InvalidArgumentError{Argument: "port", Reason: "must be in 0..65535, got " + strconv.Itoa(port)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Running {
		if ip == s.reqIP && (port == s.reqPort || port == 0 || port == s.status.Port) {
			return s.status, nil
		}
		return s.status, &bridgeerrors.InvalidArgumentError{
			Argument: "address",
			Reason:   "server already running on " + s.status.Addr,
		}
	}

	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return Status{}, bridgeerrors.Classify("listen", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.cfg.Logger.Error("httpd: serve failed", "addr", ln.Addr().String(), "error", err)
		}
	}()

	bound := ln.Addr().(*net.TCPAddr)
	s.srv = srv
	s.done = done
	s.reqIP, s.reqPort = ip, port
	s.status = Status{
		Running: true,
		IP:      ip,
		Port:    bound.Port,
		Addr:    ln.Addr().String(),
		Started: time.Now(),
	}
	st := s.status
	s.snapshot.Store(&st)
	s.cfg.Metrics.SetHTTPDRunning(true)
	s.cfg.Logger.Info("httpd: started", "addr", s.status.Addr)
	return s.status, nil
}

// Stop shuts the server down and waits for the serve goroutine to exit.
// The listening socket is closed before Stop returns. Stopping a stopped
// server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.Running {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(shutdownCtx)
	if err != nil {
		// Graceful shutdown timed out; drop the remaining connections.
		err = s.srv.Close()
	}
	<-s.done

	addr := s.status.Addr
	s.srv = nil
	s.done = nil
	s.status = Status{}
	s.reqIP, s.reqPort = "", 0
	s.snapshot.Store(&Status{})
	s.cfg.Metrics.SetHTTPDRunning(false)
	s.cfg.Logger.Info("httpd: stopped", "addr", addr)

	if err != nil {
		return &bridgeerrors.OSError{Operation: "httpd_stop", Path: addr, Err: err}
	}
	return nil
}

// Status returns a snapshot of the listener state.
func (s *Server) Status() Status {
	return *s.snapshot.Load()
}

// router builds the gin engine serving health, metrics, docs and custom handlers.
func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(requestLogger(s.cfg.Logger))
	r.Use(requestMetrics(s.cfg.Metrics))
	if s.cfg.RateLimit > 0 {
		r.Use(rateLimit(s.cfg.RateLimit, s.cfg.Burst))
	}

	r.GET("/health", func(c *gin.Context) {
		st := s.Status()
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"addr":   st.Addr,
			"uptime": time.Since(st.Started).String(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.cfg.DocRoot != "" {
		r.StaticFS("/doc", gin.Dir(s.cfg.DocRoot, false))
	}

	r.Any("/custom/:name/*rest", func(c *gin.Context) {
		h, ok := s.handlers.get(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no handler registered for " + c.Param("name")})
			return
		}
		h.ServeHTTP(c.Writer, c.Request)
	})
	return r
}
