package camera

import (
	"context"
	"sync/atomic"
)

// StubSource is a FrameSource that only counts frame requests.
//
// It stands in for a capture pipeline when none is attached, and it
// honours the advisory enabled flag: requests for a disabled camera are
// counted separately and produce nothing.
type StubSource struct {
	name     string
	frames   atomic.Uint64
	disabled atomic.Uint64
}

// NewStubSource creates a StubSource labelled name.
func NewStubSource(name string) *StubSource {
	return &StubSource{name: name}
}

// ProduceFrame implements FrameSource.
func (s *StubSource) ProduceFrame(_ context.Context, req FrameRequest) error {
	if req.Device != nil && !req.Device.Enabled() {
		s.disabled.Add(1)
		return nil
	}
	s.frames.Add(1)
	return nil
}

// Name returns the source label.
func (s *StubSource) Name() string {
	return s.name
}

// Frames returns how many frames were produced.
func (s *StubSource) Frames() uint64 {
	return s.frames.Load()
}

// DisabledRequests returns how many requests arrived while the camera was disabled.
func (s *StubSource) DisabledRequests() uint64 {
	return s.disabled.Load()
}
