package camera

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Scheduler defaults.
const (
	// DefaultBackoff is how long the worker idles when no cameras are registered.
	DefaultBackoff = 30 * time.Millisecond

	// DefaultWorkerName identifies the scheduler goroutine in fault reports.
	DefaultWorkerName = "camera-frame-worker"
)

// workerSeq hands out process-unique worker ids.
var workerSeq atomic.Uint64

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Name identifies the worker in fault reports and logs.
	Name string

	// Backoff is the idle wait when the registry is empty.
	Backoff time.Duration

	// SkipDisabled makes the scheduler skip cameras whose enabled flag is
	// false. When unset every camera is ticked and the flag is advisory to
	// the frame source.
	SkipDisabled bool
}

// Stats holds scheduler counters.
type Stats struct {
	Worker           string        `json:"worker"`
	WorkerID         uint64        `json:"worker_id"`
	Passes           uint64        `json:"passes"`
	Frames           uint64        `json:"frames"`
	Faults           uint64        `json:"faults"`
	Skipped          uint64        `json:"skipped"`
	IdleWaits        uint64        `json:"idle_waits"`
	LastPassDuration time.Duration `json:"last_pass_duration_ns"`
}

// Scheduler drives frame production round-robin across a Registry.
//
// Each pass takes the registry's current snapshot and calls ProduceFrame
// once per camera in registration order, with no delay between cameras.
// Registrations and removals made during a pass show up in the next one.
//
// Cancellation is cooperative and only observed between passes and while
// idling on an empty registry, so a pass in progress always completes.
// A slow or blocking frame source delays every other camera for that pass.
type Scheduler struct {
	registry *Registry
	cfg      SchedulerConfig
	workerID uint64
	onFault  FaultHandler
	logger   Logger

	passes       atomic.Uint64
	frames       atomic.Uint64
	faults       atomic.Uint64
	skipped      atomic.Uint64
	idleWaits    atomic.Uint64
	lastPassNano atomic.Int64
}

// NewScheduler creates a scheduler over registry. Zero config fields take
// their defaults.
func NewScheduler(registry *Registry, cfg SchedulerConfig) *Scheduler {
	if cfg.Name == "" {
		cfg.Name = DefaultWorkerName
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &Scheduler{
		registry: registry,
		cfg:      cfg,
		workerID: workerSeq.Add(1),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the scheduler. Call before Run.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// SetFaultHandler sets the hook that receives frame faults. Call before Run.
// Without a handler faults are logged at warn level only.
func (s *Scheduler) SetFaultHandler(handler FaultHandler) {
	s.onFault = handler
}

// Run executes the scheduling loop until ctx is cancelled.
// It always returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("frame scheduler started",
		"worker", s.cfg.Name,
		"worker_id", s.workerID,
		"backoff", s.cfg.Backoff,
		"skip_disabled", s.cfg.SkipDisabled,
	)
	defer s.logger.Info("frame scheduler stopped", "worker", s.cfg.Name, "passes", s.passes.Load())

	var pass uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		devices := s.registry.Snapshot()
		if len(devices) == 0 {
			s.idleWaits.Add(1)
			if !s.idle(ctx) {
				return ctx.Err()
			}
			continue
		}

		pass++
		start := time.Now()
		for _, dev := range devices {
			if s.cfg.SkipDisabled && !dev.Enabled() {
				s.skipped.Add(1)
				continue
			}
			s.tick(ctx, dev, pass)
		}
		s.passes.Add(1)
		s.lastPassNano.Store(int64(time.Since(start)))
	}
}

// idle waits for the backoff interval. Returns false if ctx was cancelled.
func (s *Scheduler) idle(ctx context.Context) bool {
	timer := time.NewTimer(s.cfg.Backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// tick asks one camera for a frame, converting errors and panics into faults.
func (s *Scheduler) tick(ctx context.Context, dev *Device, pass uint64) {
	defer func() {
		if r := recover(); r != nil {
			s.report(dev, pass, fmt.Errorf("%w: %v", ErrFramePanic, r), string(debug.Stack()))
		}
	}()

	s.frames.Add(1)
	if err := dev.Source.ProduceFrame(ctx, FrameRequest{Device: dev, Pass: pass}); err != nil {
		s.report(dev, pass, err, "")
	}
}

// report hands a fault to the fault handler. A panicking handler is logged
// and otherwise ignored so it cannot stop the worker.
func (s *Scheduler) report(dev *Device, pass uint64, err error, stack string) {
	s.faults.Add(1)

	fault := FrameFault{
		Worker:     s.cfg.Name,
		WorkerID:   s.workerID,
		DeviceID:   dev.ID,
		DeviceName: dev.Name,
		Err:        err,
		Stack:      stack,
		Pass:       pass,
		At:         time.Now().UTC(),
	}

	if s.onFault == nil {
		s.logger.Warn("frame fault",
			"worker", fault.Worker,
			"camera_id", fault.DeviceID,
			"camera", fault.DeviceName,
			"error", fault.Err,
		)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("fault handler panic recovered",
				"worker", fault.Worker,
				"camera", fault.DeviceName,
				"panic", r,
			)
		}
	}()
	s.onFault(fault)
}

// Stats returns the scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Worker:           s.cfg.Name,
		WorkerID:         s.workerID,
		Passes:           s.passes.Load(),
		Frames:           s.frames.Load(),
		Faults:           s.faults.Load(),
		Skipped:          s.skipped.Load(),
		IdleWaits:        s.idleWaits.Load(),
		LastPassDuration: time.Duration(s.lastPassNano.Load()),
	}
}

// Config returns the effective scheduler configuration.
func (s *Scheduler) Config() SchedulerConfig {
	return s.cfg
}
