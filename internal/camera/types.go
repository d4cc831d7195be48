package camera

import (
	"context"
	"sync/atomic"
	"time"
)

// FrameSource is the capture capability behind a registered camera.
//
// The capture pipeline (device open, format negotiation, encoding, teardown)
// is owned by whoever constructs the source. The scheduler only ever asks
// it for one frame at a time.
//
// ProduceFrame is fire-and-forget from the scheduler's point of view: a
// returned error or a panic is reported as a FrameFault and the scheduler
// moves on to the next camera.
type FrameSource interface {
	ProduceFrame(ctx context.Context, req FrameRequest) error
}

// FrameSourceFunc adapts an ordinary function to the FrameSource interface.
type FrameSourceFunc func(ctx context.Context, req FrameRequest) error

// ProduceFrame implements FrameSource.
func (f FrameSourceFunc) ProduceFrame(ctx context.Context, req FrameRequest) error {
	return f(ctx, req)
}

// FrameRequest is passed to a FrameSource on every scheduler tick.
type FrameRequest struct {
	// Device is the camera being ticked. Sources that honour the advisory
	// enabled flag read it via Device.Enabled().
	Device *Device

	// Pass is the scheduler pass number, starting at 1.
	Pass uint64
}

// Device is one registered video-capture source.
//
// ID, Name, Width, Height, FPS and Source are fixed at registration.
// The enabled flag is the only mutable state and is safe to read and
// write from any goroutine.
type Device struct {
	ID     int
	Name   string
	Width  int
	Height int
	FPS    int
	Source FrameSource

	RegisteredAt time.Time

	enabled atomic.Bool
}

// NewDevice creates a Device. Devices start enabled.
func NewDevice(id int, name string, width, height, fps int, src FrameSource) *Device {
	d := &Device{
		ID:           id,
		Name:         name,
		Width:        width,
		Height:       height,
		FPS:          fps,
		Source:       src,
		RegisteredAt: time.Now().UTC(),
	}
	d.enabled.Store(true)
	return d
}

// Enabled reports the device's enabled flag.
func (d *Device) Enabled() bool {
	return d.enabled.Load()
}

// Info returns a plain-value view of the device for listings.
func (d *Device) Info() Info {
	return Info{
		ID:           d.ID,
		Name:         d.Name,
		Width:        d.Width,
		Height:       d.Height,
		FPS:          d.FPS,
		Enabled:      d.Enabled(),
		RegisteredAt: d.RegisteredAt,
	}
}

// Info is a snapshot of a Device without its capture source.
type Info struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	FPS          int       `json:"fps"`
	Enabled      bool      `json:"enabled"`
	RegisteredAt time.Time `json:"registered_at"`
}

// FrameFault describes a failed ProduceFrame call.
type FrameFault struct {
	// Worker and WorkerID identify the scheduler goroutine that observed the fault.
	Worker   string
	WorkerID uint64

	DeviceID   int
	DeviceName string

	// Err is the returned error, or a wrapped ErrFramePanic for panics.
	Err error

	// Stack is only populated for panics.
	Stack string

	Pass uint64
	At   time.Time
}

// Panicked reports whether the fault came from a recovered panic.
func (f FrameFault) Panicked() bool {
	return f.Stack != ""
}

// FaultHandler receives frame faults from the scheduler goroutine.
// It must not block; implementations that do I/O should queue.
type FaultHandler func(fault FrameFault)

// Logger defines the logging interface used by the camera package.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
