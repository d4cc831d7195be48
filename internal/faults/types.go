package faults

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-camserver/internal/camera"
)

// idPrefix marks fault IDs.
const idPrefix = "flt-"

// Fault is a frame fault as recorded in the journal and published on MQTT.
type Fault struct {
	ID         string    `json:"id"`
	CameraID   int       `json:"camera_id"`
	CameraName string    `json:"camera_name"`
	Worker     string    `json:"worker"`
	WorkerID   uint64    `json:"worker_id"`
	Pass       uint64    `json:"pass"`
	Panicked   bool      `json:"panicked"`
	Message    string    `json:"message"`
	Stack      string    `json:"stack,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FromFrameFault converts a scheduler fault into a journal record with a
// fresh ID.
func FromFrameFault(f camera.FrameFault) *Fault {
	msg := "unknown error"
	if f.Err != nil {
		msg = f.Err.Error()
	}
	at := f.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &Fault{
		ID:         newID(),
		CameraID:   f.DeviceID,
		CameraName: f.DeviceName,
		Worker:     f.Worker,
		WorkerID:   f.WorkerID,
		Pass:       f.Pass,
		Panicked:   f.Panicked(),
		Message:    msg,
		Stack:      f.Stack,
		OccurredAt: at.UTC(),
	}
}

func newID() string {
	return idPrefix + uuid.NewString()
}

// Filter controls which faults List returns.
type Filter struct {
	CameraName string    // optional: only this camera
	Since      time.Time // optional: only faults at or after this time
	Limit      int       // default 50, max 500
	Offset     int       // pagination offset
}

// ListResult is a page of faults, newest first.
type ListResult struct {
	Faults []Fault `json:"faults"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository persists frame faults.
type Repository interface {
	Record(ctx context.Context, fault *Fault) error
	Get(ctx context.Context, id string) (*Fault, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Logger defines the logging interface used by the faults package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
