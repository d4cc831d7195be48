package faults

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-camserver/internal/camera"
	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/mqtt"
)

// DefaultStatsInterval is how often scheduler counters are sampled.
const DefaultStatsInterval = 60 * time.Second

// StatsSource provides scheduler counters and the camera list.
// *camera.Server implements it.
type StatsSource interface {
	SchedulerStats() camera.Stats
	Devices() []camera.Info
}

// SchedulerWriter records scheduler samples. *influxdb.Client implements it.
type SchedulerWriter interface {
	WriteSchedulerStats(s influxdb.SchedulerPoint)
}

// StatsWriterConfig configures a StatsWriter. Nil sinks are skipped.
type StatsWriterConfig struct {
	// Interval between samples. Zero means DefaultStatsInterval.
	Interval time.Duration

	Source    StatsSource
	Points    SchedulerWriter
	Publisher Publisher

	// Reporter, if set, adds fault pipeline counters to the MQTT sample.
	Reporter *Reporter
}

// SchedulerSample is the JSON body published on the scheduler stats topic.
type SchedulerSample struct {
	Scheduler camera.Stats   `json:"scheduler"`
	Cameras   int            `json:"cameras"`
	Enabled   int            `json:"enabled"`
	Faults    *ReporterStats `json:"faults,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// StatsWriter periodically samples the frame scheduler and writes the
// counters to InfluxDB and MQTT.
type StatsWriter struct {
	cfg StatsWriterConfig

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewStatsWriter creates a StatsWriter. Call Start to begin sampling.
func NewStatsWriter(cfg StatsWriterConfig) *StatsWriter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultStatsInterval
	}
	return &StatsWriter{
		cfg:    cfg,
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for publish failures.
func (w *StatsWriter) SetLogger(logger Logger) {
	w.loggerMu.Lock()
	w.logger = logger
	w.loggerMu.Unlock()
}

// Start begins periodic sampling. Later calls are no-ops.
func (w *StatsWriter) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.wg.Add(1)
		go w.loop(ctx)
	})
}

// Stop ends sampling and waits for the loop to exit. Safe to call multiple times.
func (w *StatsWriter) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}

func (w *StatsWriter) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.WriteNow()
		}
	}
}

// Sample collects the current counters.
func (w *StatsWriter) Sample() SchedulerSample {
	devices := w.cfg.Source.Devices()
	enabled := 0
	for _, d := range devices {
		if d.Enabled {
			enabled++
		}
	}

	sample := SchedulerSample{
		Scheduler: w.cfg.Source.SchedulerStats(),
		Cameras:   len(devices),
		Enabled:   enabled,
		Timestamp: time.Now().UTC(),
	}
	if w.cfg.Reporter != nil {
		stats := w.cfg.Reporter.Stats()
		sample.Faults = &stats
	}
	return sample
}

// WriteNow takes a sample and writes it to every configured sink.
func (w *StatsWriter) WriteNow() {
	sample := w.Sample()

	if w.cfg.Points != nil {
		w.cfg.Points.WriteSchedulerStats(influxdb.SchedulerPoint{
			Worker:    sample.Scheduler.Worker,
			Passes:    sample.Scheduler.Passes,
			Frames:    sample.Scheduler.Frames,
			Faults:    sample.Scheduler.Faults,
			Skipped:   sample.Scheduler.Skipped,
			IdleWaits: sample.Scheduler.IdleWaits,
			LastPass:  sample.Scheduler.LastPassDuration,
			Cameras:   sample.Cameras,
			Enabled:   sample.Enabled,
			At:        sample.Timestamp,
		})
	}

	if w.cfg.Publisher != nil {
		if err := w.cfg.Publisher.PublishJSON(mqtt.Topics{}.SchedulerStats(), sample, true); err != nil {
			w.loggerMu.RLock()
			logger := w.logger
			w.loggerMu.RUnlock()
			logger.Debug("failed to publish scheduler stats", "error", err)
		}
	}
}
