package faults

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-camserver/internal/camera"
	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/mqtt"
)

// Reporter defaults.
const (
	DefaultQueueSize     = 256
	DefaultPruneInterval = time.Hour

	// sinkTimeout bounds each journal write and prune.
	sinkTimeout = 5 * time.Second
)

// Publisher publishes fault events. *mqtt.Client implements it.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// PointWriter records fault points. *influxdb.Client implements it.
type PointWriter interface {
	WriteFrameFault(p influxdb.FrameFaultPoint)
}

// ReporterConfig configures a Reporter. Nil sinks are skipped.
type ReporterConfig struct {
	// QueueSize bounds faults waiting for the sinks. Zero means DefaultQueueSize.
	QueueSize int

	// Retention is how long journalled faults are kept. Zero disables pruning.
	Retention time.Duration

	// PruneInterval is how often old faults are pruned. Zero means DefaultPruneInterval.
	PruneInterval time.Duration

	Repository Repository
	Publisher  Publisher
	Points     PointWriter
}

// ReporterStats holds fault pipeline counters.
type ReporterStats struct {
	Reported  uint64 `json:"reported"`
	Dropped   uint64 `json:"dropped"`
	Persisted uint64 `json:"persisted"`
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Pruned    uint64 `json:"pruned"`
}

// Reporter fans frame faults out to the log, the SQLite journal, MQTT and
// InfluxDB.
//
// Handle is the camera.FaultHandler. It runs on the scheduler goroutine and
// only enqueues; a single reporter goroutine drains the queue. When the
// queue is full the fault is dropped and counted.
//
// Thread Safety: all methods are safe for concurrent use.
type Reporter struct {
	cfg   ReporterConfig
	queue chan *Fault

	reported  atomic.Uint64
	dropped   atomic.Uint64
	persisted atomic.Uint64
	published atomic.Uint64
	failed    atomic.Uint64
	pruned    atomic.Uint64

	// Shutdown coordination (stopOnce prevents double-close panics)
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	// stopped is guarded by sendMu so no fault is queued after the final drain.
	stopped bool
	sendMu  sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// NewReporter creates a Reporter. Call Start to begin draining.
func NewReporter(cfg ReporterConfig) *Reporter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = DefaultPruneInterval
	}
	return &Reporter{
		cfg:    cfg,
		queue:  make(chan *Fault, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used for the log sink and sink failures.
func (r *Reporter) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

func (r *Reporter) getLogger() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

// Handle enqueues a scheduler fault without blocking.
func (r *Reporter) Handle(fault camera.FrameFault) {
	r.reported.Add(1)

	r.sendMu.RLock()
	defer r.sendMu.RUnlock()
	if r.stopped {
		r.dropped.Add(1)
		return
	}

	select {
	case r.queue <- FromFrameFault(fault):
	default:
		r.dropped.Add(1)
	}
}

// Start launches the reporter goroutine. Later calls are no-ops.
func (r *Reporter) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.run(ctx)
	})
}

// Stop stops accepting faults, delivers whatever is queued, and waits for
// the reporter goroutine. Safe to call multiple times.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		r.sendMu.Lock()
		r.stopped = true
		r.sendMu.Unlock()

		close(r.done)
		r.wg.Wait()
	})
}

// Stats returns the pipeline counters.
func (r *Reporter) Stats() ReporterStats {
	return ReporterStats{
		Reported:  r.reported.Load(),
		Dropped:   r.dropped.Load(),
		Persisted: r.persisted.Load(),
		Published: r.published.Load(),
		Failed:    r.failed.Load(),
		Pruned:    r.pruned.Load(),
	}
}

func (r *Reporter) run(ctx context.Context) {
	defer r.wg.Done()

	var pruneC <-chan time.Time
	if r.cfg.Retention > 0 && r.cfg.Repository != nil {
		r.prune(ctx)
		ticker := time.NewTicker(r.cfg.PruneInterval)
		defer ticker.Stop()
		pruneC = ticker.C
	}

	for {
		select {
		case fault := <-r.queue:
			r.deliver(ctx, fault)
		case <-pruneC:
			r.prune(ctx)
		case <-ctx.Done():
			r.drain(context.WithoutCancel(ctx))
			return
		case <-r.done:
			r.drain(ctx)
			return
		}
	}
}

// drain delivers everything already queued.
func (r *Reporter) drain(ctx context.Context) {
	for {
		select {
		case fault := <-r.queue:
			r.deliver(ctx, fault)
		default:
			return
		}
	}
}

func (r *Reporter) deliver(ctx context.Context, fault *Fault) {
	logger := r.getLogger()
	logger.Warn("frame fault",
		"fault_id", fault.ID,
		"worker", fault.Worker,
		"camera_id", fault.CameraID,
		"camera", fault.CameraName,
		"pass", fault.Pass,
		"panicked", fault.Panicked,
		"error", fault.Message,
	)

	if r.cfg.Repository != nil {
		recordCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
		err := r.cfg.Repository.Record(recordCtx, fault)
		cancel()
		if err != nil {
			r.failed.Add(1)
			logger.Error("failed to journal frame fault", "fault_id", fault.ID, "error", err)
		} else {
			r.persisted.Add(1)
		}
	}

	if r.cfg.Publisher != nil {
		if err := r.cfg.Publisher.PublishJSON(mqtt.Topics{}.CameraFault(fault.CameraName), fault, false); err != nil {
			r.failed.Add(1)
			logger.Debug("failed to publish frame fault", "fault_id", fault.ID, "error", err)
		} else {
			r.published.Add(1)
		}
	}

	if r.cfg.Points != nil {
		r.cfg.Points.WriteFrameFault(influxdb.FrameFaultPoint{
			Camera:   fault.CameraName,
			CameraID: fault.CameraID,
			Worker:   fault.Worker,
			Pass:     fault.Pass,
			Panicked: fault.Panicked,
			Error:    fault.Message,
			At:       fault.OccurredAt,
		})
	}
}

func (r *Reporter) prune(ctx context.Context) {
	pruneCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()

	n, err := r.cfg.Repository.Prune(pruneCtx, time.Now().UTC().Add(-r.cfg.Retention))
	if err != nil {
		r.getLogger().Error("failed to prune frame faults", "error", err)
		return
	}
	if n > 0 {
		r.pruned.Add(uint64(n)) // #nosec G115 -- row count is non-negative
		r.getLogger().Info("pruned frame faults", "count", n, "retention", r.cfg.Retention)
	}
}
