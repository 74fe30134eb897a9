// Package api provides the HTTP REST API and WebSocket server for Hearth Cloud.
//
// It exposes two surfaces: the edge sync protocol (HMAC-signed, mounted
// under the configured edge prefix) and the user-facing JSON API under
// /api/v1 (JWT-authenticated). Real-time events reach browsers and apps
// through the WebSocket hub.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearthlabs/hearth-cloud/internal/auth"
	"github.com/hearthlabs/hearth-cloud/internal/command"
	"github.com/hearthlabs/hearth-cloud/internal/edge"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/config"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/logging"
	"github.com/hearthlabs/hearth-cloud/internal/registry"
	"github.com/hearthlabs/hearth-cloud/internal/signature"
	"github.com/hearthlabs/hearth-cloud/internal/telemetry"
	"github.com/hearthlabs/hearth-cloud/internal/topology"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	EdgeCfg     config.EdgeConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Auth        *auth.Service
	EdgeRepo    edge.Repository
	Registry    *registry.Service
	Telemetry   *telemetry.Service
	Commands    *command.Service
	Topology    *topology.Service
	TopoRepo    topology.Repository
	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for Hearth Cloud.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	edgeCfg     config.EdgeConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	codec       *signature.Codec
	auth        *auth.Service
	edgeRepo    edge.Repository
	registry    *registry.Service
	telemetry   *telemetry.Service
	commands    *command.Service
	topology    *topology.Service
	topoRepo    topology.Repository
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, domain services)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.EdgeCfg.SharedSecret == "" {
		return nil, fmt.Errorf("edge shared secret is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("command service is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		edgeCfg:   deps.EdgeCfg,
		secCfg:    deps.Security,
		logger:    deps.Logger.With("component", "api"),
		codec:     signature.NewCodec(deps.EdgeCfg.SharedSecret),
		auth:      deps.Auth,
		edgeRepo:  deps.EdgeRepo,
		registry:  deps.Registry,
		telemetry: deps.Telemetry,
		commands:  deps.Commands,
		topology:  deps.Topology,
		topoRepo:  deps.TopoRepo,
		version:   deps.Version,
	}

	// Use an externally-provided hub when the caller also feeds it
	// command lifecycle events.
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server is stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation of background goroutines
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
