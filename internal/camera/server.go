package camera

import (
	"context"
	"fmt"
	"sync"
)

// Config configures a Server.
type Config struct {
	// Capacity is the maximum number of cameras. Zero means DefaultCapacity.
	Capacity int

	// Scheduler configures the frame worker.
	Scheduler SchedulerConfig
}

// Option customises a Server at construction time.
type Option func(*Server)

// WithLogger sets the logger for the server, its registry and its scheduler.
func WithLogger(logger Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithFaultHandler sets the hook that receives frame faults.
func WithFaultHandler(handler FaultHandler) Option {
	return func(s *Server) {
		s.onFault = handler
	}
}

// WithStateListener sets a callback invoked after a camera is registered,
// removed, or has its enabled flag changed. It runs on the caller's
// goroutine and must not block.
func WithStateListener(listener func(event StateEvent)) Option {
	return func(s *Server) {
		s.onState = listener
	}
}

// StateEventType names what happened to a camera.
type StateEventType string

const (
	StateRegistered StateEventType = "registered"
	StateRemoved    StateEventType = "removed"
	StateEnabled    StateEventType = "enabled"
	StateDisabled   StateEventType = "disabled"
)

// StateEvent is delivered to the state listener.
type StateEvent struct {
	Type   StateEventType
	Camera Info
}

// RegisterOption customises a single registration.
type RegisterOption func(*Device)

// StartDisabled registers the camera with its enabled flag cleared.
func StartDisabled() RegisterOption {
	return func(d *Device) {
		d.enabled.Store(false)
	}
}

// Server owns one camera Registry and the single Scheduler worker that
// drives it. It is the entry point other components use to register
// cameras, toggle them, and enumerate their capture sources.
//
// Construct one per process with New and pass it by pointer, or use
// GetOrCreate for a lazily created process-wide instance.
//
// All public methods are thread-safe.
type Server struct {
	registry  *Registry
	scheduler *Scheduler
	logger    Logger
	onFault   FaultHandler
	onState   func(event StateEvent)

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Server. The scheduler is not started until StartScheduler.
func New(cfg Config, opts ...Option) (*Server, error) {
	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}

	registry, err := NewRegistry(capacity)
	if err != nil {
		return nil, err
	}

	s := &Server{
		registry: registry,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registry.SetLogger(s.logger)
	s.scheduler = NewScheduler(registry, cfg.Scheduler)
	s.scheduler.SetLogger(s.logger)
	if s.onFault != nil {
		s.scheduler.SetFaultHandler(s.onFault)
	}

	return s, nil
}

var (
	instanceMu sync.Mutex
	instance   *Server
)

// GetOrCreate returns the process-wide Server, creating it on first use.
//
// The first caller's capacity and options win for the life of the process.
// Later calls return the same instance and ignore their arguments, even if
// the capacity differs; compare against Capacity() to detect that. A
// capacity below 1 means DefaultCapacity.
func GetOrCreate(capacity int, opts ...Option) *Server {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		return instance
	}

	if capacity < 1 {
		capacity = DefaultCapacity
	}
	s, err := New(Config{Capacity: capacity}, opts...)
	if err != nil {
		// Unreachable: capacity was normalised above.
		panic(fmt.Sprintf("camera: creating server: %v", err))
	}
	instance = s
	return instance
}

// StartScheduler starts the frame worker. The worker runs until ctx is
// cancelled or Stop is called. The worker is started at most once per
// Server; later calls are a no-op.
func (s *Server) StartScheduler(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.logger.Debug("frame scheduler already started")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.started = true

	go func() {
		defer close(done)
		s.scheduler.Run(runCtx) //nolint:errcheck // Run only returns ctx.Err()
	}()

	return nil
}

// Stop cancels the frame worker and waits for its current pass to finish
// or for ctx to expire. Registry operations remain valid afterwards.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for frame scheduler: %w", ctx.Err())
	}
}

// Running reports whether the frame worker is currently running.
func (s *Server) Running() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Register creates a camera and adds it to the registry.
// Returns ErrCapacityExceeded if the registry is full.
func (s *Server) Register(id int, name string, width, height, fps int, src FrameSource, opts ...RegisterOption) error {
	dev := NewDevice(id, name, width, height, fps, src)
	for _, opt := range opts {
		opt(dev)
	}

	if err := s.registry.Add(dev); err != nil {
		return fmt.Errorf("registering camera %q: %w", name, err)
	}

	s.notify(StateRegistered, dev)
	return nil
}

// Remove unregisters a camera by id. Returns false if it was not registered.
func (s *Server) Remove(id int) bool {
	dev, ok := s.registry.Remove(id)
	if !ok {
		return false
	}
	s.notify(StateRemoved, dev)
	return true
}

// IsEnabledByID reports the enabled flag of a camera; false if unknown.
func (s *Server) IsEnabledByID(id int) bool {
	dev, ok := s.registry.LookupByID(id)
	return ok && dev.Enabled()
}

// IsEnabledByName reports the enabled flag of a camera; false if unknown.
func (s *Server) IsEnabledByName(name string) bool {
	dev, ok := s.registry.LookupByName(name)
	return ok && dev.Enabled()
}

// SetEnabledByID sets a camera's enabled flag. Unknown ids are ignored.
func (s *Server) SetEnabledByID(id int, enabled bool) {
	dev, _ := s.registry.LookupByID(id)
	s.setEnabled(dev, enabled)
}

// SetEnabledByName sets a camera's enabled flag. Unknown names are ignored.
func (s *Server) SetEnabledByName(name string, enabled bool) {
	dev, _ := s.registry.LookupByName(name)
	s.setEnabled(dev, enabled)
}

func (s *Server) setEnabled(dev *Device, enabled bool) {
	if !s.registry.SetEnabled(dev, enabled) {
		return
	}
	if enabled {
		s.notify(StateEnabled, dev)
	} else {
		s.notify(StateDisabled, dev)
	}
}

// Device returns the camera registered under id.
func (s *Server) Device(id int) (*Device, bool) {
	return s.registry.LookupByID(id)
}

// DeviceByName returns the camera registered under name.
func (s *Server) DeviceByName(name string) (*Device, bool) {
	return s.registry.LookupByName(name)
}

// Devices lists every camera in registration order.
func (s *Server) Devices() []Info {
	return s.registry.Devices()
}

// ListCaptureSources returns the frame sources of all registered cameras.
func (s *Server) ListCaptureSources() []FrameSource {
	return s.registry.CaptureSources()
}

// Capacity returns the registry capacity fixed at creation.
func (s *Server) Capacity() int {
	return s.registry.Capacity()
}

// Len returns the number of registered cameras.
func (s *Server) Len() int {
	return s.registry.Len()
}

// SchedulerStats returns the frame worker counters.
func (s *Server) SchedulerStats() Stats {
	return s.scheduler.Stats()
}

func (s *Server) notify(t StateEventType, dev *Device) {
	if s.onState == nil {
		return
	}
	s.onState(StateEvent{Type: t, Camera: dev.Info()})
}
