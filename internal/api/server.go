package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-camserver/internal/camera"
	"github.com/nerrad567/gray-logic-camserver/internal/faults"
	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Cameras is the camera server surface the API needs. *camera.Server
// implements it.
type Cameras interface {
	Device(id int) (*camera.Device, bool)
	DeviceByName(name string) (*camera.Device, bool)
	Devices() []camera.Info
	SetEnabledByID(id int, enabled bool)
	SchedulerStats() camera.Stats
	Capacity() int
	Len() int
	Running() bool
}

// FaultLister reads the fault journal. *faults.SQLiteRepository implements it.
type FaultLister interface {
	List(ctx context.Context, filter faults.Filter) (*faults.ListResult, error)
}

// HealthChecker is implemented by the database, MQTT and InfluxDB clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Cameras Cameras

	// Faults is optional; without it /faults answers 503.
	Faults FaultLister

	// Reporter is optional; its counters are added to /scheduler.
	Reporter *faults.Reporter

	// Checks are run by /health, keyed by dependency name.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP API server for the camera server.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	cameras  Cameras
	faults   FaultLister
	reporter *faults.Reporter
	checks   map[string]HealthChecker
	version  string
	server   *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Cameras == nil {
		return nil, fmt.Errorf("camera server is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		cameras:  deps.Cameras,
		faults:   deps.Faults,
		reporter: deps.Reporter,
		checks:   deps.Checks,
		version:  deps.Version,
	}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
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

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server has been started.
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
