package camera

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultCapacity is the number of cameras a registry holds when no
// capacity is configured.
const DefaultCapacity = 8

// Registry is an ordered, capacity-bounded collection of cameras indexed
// by id and by name.
//
// Registration order is scheduling order. The ordered sequence is
// copy-on-write: every mutation publishes a new slice and a published
// slice is never modified, so the scheduler can iterate a Snapshot()
// without holding the lock while other goroutines register or remove
// cameras. Both indices point at the same *Device values as the sequence.
//
// All public methods are thread-safe.
type Registry struct {
	mu       sync.RWMutex
	capacity int
	devices  []*Device // published sequence, never mutated in place
	byID     map[int]*Device
	byName   map[string]*Device
	logger   Logger
}

// NewRegistry creates an empty registry with the given capacity.
func NewRegistry(capacity int) (*Registry, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Registry{
		capacity: capacity,
		byID:     make(map[int]*Device, capacity),
		byName:   make(map[string]*Device, capacity),
		logger:   noopLogger{},
	}, nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Add appends a camera and indexes it under its id and name.
//
// Returns ErrCapacityExceeded when the registry is full and ErrDuplicateKey
// when the id or name is already taken. On failure nothing is inserted.
func (r *Registry) Add(dev *Device) error {
	if err := validateDevice(dev); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.devices) >= r.capacity {
		return fmt.Errorf("%w: max %d cameras", ErrCapacityExceeded, r.capacity)
	}
	if _, exists := r.byID[dev.ID]; exists {
		return fmt.Errorf("%w: id %d", ErrDuplicateKey, dev.ID)
	}
	if _, exists := r.byName[dev.Name]; exists {
		return fmt.Errorf("%w: name %q", ErrDuplicateKey, dev.Name)
	}

	next := make([]*Device, len(r.devices), len(r.devices)+1)
	copy(next, r.devices)
	r.devices = append(next, dev)
	r.byID[dev.ID] = dev
	r.byName[dev.Name] = dev

	r.logger.Info("camera registered",
		"id", dev.ID,
		"name", dev.Name,
		"width", dev.Width,
		"height", dev.Height,
		"fps", dev.FPS,
	)
	return nil
}

// Remove unregisters the camera with the given id and returns it.
// Returns false if no such camera is registered.
func (r *Registry) Remove(id int) (*Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.byID[id]
	if !ok {
		return nil, false
	}

	next := make([]*Device, 0, len(r.devices)-1)
	for _, d := range r.devices {
		if d != dev {
			next = append(next, d)
		}
	}
	r.devices = next
	delete(r.byID, dev.ID)
	delete(r.byName, dev.Name)

	r.logger.Info("camera removed", "id", dev.ID, "name", dev.Name)
	return dev, true
}

// LookupByID returns the camera registered under id.
func (r *Registry) LookupByID(id int) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.byID[id]
	return dev, ok
}

// LookupByName returns the camera registered under name.
func (r *Registry) LookupByName(name string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.byName[name]
	return dev, ok
}

// SetEnabled sets the camera's enabled flag. A nil device, or one that is
// no longer registered, is a no-op, so a lookup miss or a lookup that
// raced with Remove silently does nothing. It reports whether the flag
// changed.
func (r *Registry) SetEnabled(dev *Device, enabled bool) bool {
	if dev == nil {
		return false
	}

	// Remove takes the write lock, so holding the read lock across the
	// membership check and the swap keeps a removed camera untouched.
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.byID[dev.ID] != dev {
		return false
	}
	if dev.enabled.Swap(enabled) == enabled {
		return false
	}
	r.logger.Info("camera enabled changed", "id", dev.ID, "name", dev.Name, "enabled", enabled)
	return true
}

// Snapshot returns the current ordered sequence.
// The slice is shared and must be treated as read-only.
func (r *Registry) Snapshot() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices
}

// CaptureSources returns the frame sources of all registered cameras in
// registration order. The returned slice is owned by the caller.
func (r *Registry) CaptureSources() []FrameSource {
	devices := r.Snapshot()
	sources := make([]FrameSource, 0, len(devices))
	for _, d := range devices {
		sources = append(sources, d.Source)
	}
	return sources
}

// Devices returns a plain-value view of every camera in registration order.
func (r *Registry) Devices() []Info {
	devices := r.Snapshot()
	infos := make([]Info, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, d.Info())
	}
	return infos
}

// Len returns the number of registered cameras.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Capacity returns the maximum number of cameras.
func (r *Registry) Capacity() int {
	return r.capacity
}

// validateDevice checks a camera record before registration.
func validateDevice(dev *Device) error {
	if dev == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidDevice)
	}
	if dev.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDevice)
	}
	if !ValidName(dev.Name) {
		return fmt.Errorf("%w: camera name %q must not contain '/', '+', '#' or NUL", ErrInvalidDevice, dev.Name)
	}
	if dev.Source == nil {
		return fmt.Errorf("%w: camera %q has no frame source", ErrInvalidDevice, dev.Name)
	}
	if dev.Width < 0 || dev.Height < 0 || dev.FPS < 0 {
		return fmt.Errorf("%w: camera %q has negative geometry", ErrInvalidDevice, dev.Name)
	}
	return nil
}

// ValidName reports whether name can be used as a camera name. A name
// becomes one MQTT topic level.
func ValidName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/+#\x00")
}
