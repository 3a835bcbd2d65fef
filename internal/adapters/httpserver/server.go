// Package httpserver serves liveness, readiness, version and metrics
// endpoints for the orchestrated process.
//
// It runs either as the guarded server itself, when there is no child
// command to supervise, or as a plugin next to one.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/preflight/pkg/log"
	"github.com/bft-labs/preflight/pkg/preflight"
)

// DefaultReadHeaderTimeout bounds slow clients.
const DefaultReadHeaderTimeout = 5 * time.Second

// Config configures the status server.
type Config struct {
	// Addr is the listen address, e.g. ":9090". Port 0 picks a free port.
	Addr              string
	ReadHeaderTimeout time.Duration
	// Versions is served verbatim by /version.
	Versions map[string]string
}

// Server is the status HTTP server. It implements preflight.Server,
// preflight.Stopper and preflight.Plugin.
type Server struct {
	preflight.BasePlugin

	cfg      Config
	gatherer prometheus.Gatherer

	mu       sync.Mutex
	host     preflight.Host
	srv      *http.Server
	listener net.Listener
}

var (
	_ preflight.Server  = (*Server)(nil)
	_ preflight.Stopper = (*Server)(nil)
	_ preflight.Plugin  = (*Server)(nil)
)

// New creates a status server. gatherer may be nil to disable /metrics.
func New(cfg Config, gatherer prometheus.Gatherer) *Server {
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	return &Server{
		BasePlugin: preflight.NewBasePlugin("httpserver"),
		cfg:        cfg,
		gatherer:   gatherer,
	}
}

// Bind attaches the orchestrator. It must be called before Start when the
// server is not used as a plugin.
func (s *Server) Bind(host preflight.Host) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host = host
}

// Initialize binds host and starts serving.
func (s *Server) Initialize(ctx context.Context, host preflight.Host) error {
	s.Bind(host)
	return s.Start(ctx)
}

// Shutdown stops serving.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Stop(ctx)
}

// Start binds the listen address and serves in the background. Errors from
// the serve loop are reported to the host.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.host == nil {
		return errors.New("httpserver: not bound to an orchestrator")
	}
	if s.srv != nil {
		return errors.New("httpserver: already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	host := s.host
	srv := &http.Server{
		Handler:           NewRouter(host.Status, s.gatherer, s.cfg.Versions, host.Logger()),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	s.srv = srv
	s.listener = ln

	host.Logger().Info("status server listening", log.String("addr", ln.Addr().String()))

	host.Go("status server", func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	return nil
}

// Stop shuts the HTTP server down gracefully within ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
