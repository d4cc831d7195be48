package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the camera server.
const (
	MeasurementFrameFault = "camera_frame_fault"
	MeasurementScheduler  = "camera_scheduler"
)

// FrameFaultPoint is one failed frame production.
type FrameFaultPoint struct {
	Camera   string
	CameraID int
	Worker   string
	Pass     uint64
	Panicked bool
	Error    string
	At       time.Time
}

// SchedulerPoint is a sample of the frame scheduler counters.
type SchedulerPoint struct {
	Worker    string
	Passes    uint64
	Frames    uint64
	Faults    uint64
	Skipped   uint64
	IdleWaits uint64
	LastPass  time.Duration
	Cameras   int
	Enabled   int
	At        time.Time
}

// WriteFrameFault records a frame fault. Camera and worker are tags so
// faults can be grouped per camera; the error text is a field.
//
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteFrameFault(f FrameFaultPoint) {
	if !c.IsConnected() {
		return
	}

	at := f.At
	if at.IsZero() {
		at = time.Now()
	}

	point := write.NewPoint(
		MeasurementFrameFault,
		map[string]string{
			"camera": f.Camera,
			"worker": f.Worker,
		},
		map[string]interface{}{
			"camera_id": int64(f.CameraID),
			"pass":      int64(f.Pass), // #nosec G115 -- pass counts never approach MaxInt64
			"panicked":  f.Panicked,
			"error":     f.Error,
		},
		at,
	)
	c.writeAPI.WritePoint(point)
}

// WriteSchedulerStats records a sample of the scheduler counters.
//
//	client.WriteSchedulerStats(influxdb.SchedulerPoint{
//	    Worker: "camera-frame-worker",
//	    Passes: 1200, Frames: 9600, Cameras: 8, Enabled: 7,
//	})
func (c *Client) WriteSchedulerStats(s SchedulerPoint) {
	if !c.IsConnected() {
		return
	}

	at := s.At
	if at.IsZero() {
		at = time.Now()
	}

	// #nosec G115 -- counters never approach MaxInt64
	point := write.NewPoint(
		MeasurementScheduler,
		map[string]string{
			"worker": s.Worker,
		},
		map[string]interface{}{
			"passes":          int64(s.Passes),
			"frames":          int64(s.Frames),
			"faults":          int64(s.Faults),
			"skipped":         int64(s.Skipped),
			"idle_waits":      int64(s.IdleWaits),
			"last_pass_ms":    float64(s.LastPass) / float64(time.Millisecond),
			"cameras":         int64(s.Cameras),
			"cameras_enabled": int64(s.Enabled),
		},
		at,
	)
	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
