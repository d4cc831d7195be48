package camera

import "errors"

// Domain errors for the camera package.
//
// Lookups by an unknown id or name are not errors: they resolve to
// (nil, false), false, or a silent no-op.
//
//	if errors.Is(err, camera.ErrCapacityExceeded) {
//	    // registry is full
//	}
var (
	// ErrCapacityExceeded is returned when registering into a full registry.
	ErrCapacityExceeded = errors.New("camera: capacity exceeded")

	// ErrDuplicateKey is returned when a camera id or name is already registered.
	ErrDuplicateKey = errors.New("camera: duplicate key")

	// ErrInvalidDevice is returned when a camera record fails validation.
	ErrInvalidDevice = errors.New("camera: invalid device")

	// ErrInvalidCapacity is returned when a registry is created with capacity < 1.
	ErrInvalidCapacity = errors.New("camera: invalid capacity")

	// ErrFramePanic wraps a panic recovered from a FrameSource.
	ErrFramePanic = errors.New("camera: frame source panicked")
)
