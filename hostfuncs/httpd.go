package hostfuncs

import (
	"context"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
	"github.com/reglet-dev/rtools-bridge/httpd"
)

// DefaultHTTPDAddress is the interface the help server binds when none is given.
const DefaultHTTPDAddress = "127.0.0.1"

// HTTPDStartRequest selects the listen address.
type HTTPDStartRequest struct {
	// IP is the interface to bind. Empty means DefaultHTTPDAddress.
	IP string `json:"ip,omitempty" validate:"omitempty,ip"`

	// Port is the TCP port; 0 picks a free one.
	Port int `json:"port" validate:"gte=0,lte=65535"`
}

// HTTPDResponse reports the server state after the call.
type HTTPDResponse struct {
	Error  *entities.ErrorDetail `json:"error,omitempty"`
	Status httpd.Status          `json:"status"`
}

// HTTPDOption is a functional option for the help server host functions.
type HTTPDOption func(*httpdConfig)

type httpdConfig struct {
	server *httpd.Server
}

// WithServer targets s instead of httpd.Default().
func WithServer(s *httpd.Server) HTTPDOption {
	return func(c *httpdConfig) {
		if s != nil {
			c.server = s
		}
	}
}

func resolveServer(opts []HTTPDOption) *httpd.Server {
	cfg := httpdConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.server == nil {
		return httpd.Default()
	}
	return cfg.server
}

// PerformStartHTTPD starts the help server. Starting a server that already
// listens on the requested address succeeds and returns the current status.
func PerformStartHTTPD(_ context.Context, req HTTPDStartRequest, opts ...HTTPDOption) HTTPDResponse {
	ip := req.IP
	if ip == "" {
		ip = DefaultHTTPDAddress
	}
	st, err := resolveServer(opts).Start(ip, req.Port)
	if err != nil {
		return HTTPDResponse{Error: bridgeerrors.ToErrorDetail(err), Status: st}
	}
	return HTTPDResponse{Status: st}
}

// PerformStopHTTPD stops the help server and waits for the socket to close.
func PerformStopHTTPD(ctx context.Context, opts ...HTTPDOption) HTTPDResponse {
	srv := resolveServer(opts)
	if err := srv.Stop(ctx); err != nil {
		return HTTPDResponse{Error: bridgeerrors.ToErrorDetail(err), Status: srv.Status()}
	}
	return HTTPDResponse{Status: srv.Status()}
}

// PerformHTTPDStatus reports the help server state.
func PerformHTTPDStatus(_ context.Context, opts ...HTTPDOption) HTTPDResponse {
	return HTTPDResponse{Status: resolveServer(opts).Status()}
}
