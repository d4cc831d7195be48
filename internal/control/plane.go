package control

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-camserver/internal/camera"
	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/mqtt"
)

// DefaultQueueSize bounds state updates waiting to be published.
const DefaultQueueSize = 64

// MQTTClient is the subset of *mqtt.Client the control plane uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Cameras is the subset of *camera.Server the control plane uses.
type Cameras interface {
	DeviceByName(name string) (*camera.Device, bool)
	SetEnabledByName(name string, enabled bool)
	Devices() []camera.Info
}

// Config configures a Plane.
type Config struct {
	// QoS for subscriptions and state publications.
	QoS byte

	// QueueSize bounds pending state updates. Zero means DefaultQueueSize.
	QueueSize int
}

// Stats holds control plane counters.
type Stats struct {
	Commands  uint64 `json:"commands"`
	Rejected  uint64 `json:"rejected"`
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

// Plane connects cameras to MQTT.
//
// It subscribes to camserver/command/camera/+ and applies {"enabled": bool}
// commands by camera name. Camera state changes arrive through Notify,
// which is installed as the camera.Server state listener, and are
// published retained on camserver/state/camera/{name} by a single
// publisher goroutine. Notify never blocks; a full queue drops the update.
//
// Thread Safety: all methods are safe for concurrent use.
type Plane struct {
	client MQTTClient
	cfg    Config

	cameras   Cameras
	camerasMu sync.RWMutex

	updates chan stateUpdate

	commands  atomic.Uint64
	rejected  atomic.Uint64
	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a Plane that publishes through client.
func New(client MQTTClient, cfg Config) *Plane {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Plane{
		client:  client,
		cfg:     cfg,
		updates: make(chan stateUpdate, cfg.QueueSize),
		done:    make(chan struct{}),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for this plane.
func (p *Plane) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

func (p *Plane) getLogger() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}

// Start subscribes to camera commands, queues the current state of every
// camera, and starts the publisher goroutine. Later calls are no-ops.
func (p *Plane) Start(ctx context.Context, cameras Cameras) error {
	var err error
	p.startOnce.Do(func() {
		p.camerasMu.Lock()
		p.cameras = cameras
		p.camerasMu.Unlock()

		topic := mqtt.Topics{}.AllCameraCommands()
		if err = p.client.Subscribe(topic, p.cfg.QoS, p.HandleCommand); err != nil {
			err = fmt.Errorf("subscribe to camera commands: %w", err)
			return
		}
		p.getLogger().Info("subscribed to camera commands", "topic", topic)

		p.started.Store(true)
		p.wg.Add(1)
		go p.publishLoop(ctx)

		p.PublishAll()
	})
	return err
}

// Stop unsubscribes, publishes what is already queued, and waits for the
// publisher goroutine. Safe to call multiple times.
func (p *Plane) Stop() {
	p.stopOnce.Do(func() {
		if !p.started.Load() {
			return
		}
		if err := p.client.Unsubscribe(mqtt.Topics{}.AllCameraCommands()); err != nil {
			p.getLogger().Debug("unsubscribe from camera commands failed", "error", err)
		}
		close(p.done)
		p.wg.Wait()
	})
}

// Notify queues a camera state change for publication.
func (p *Plane) Notify(event camera.StateEvent) {
	p.enqueue(stateUpdate{
		state:   newState(event.Camera, event.Type),
		removed: event.Type == camera.StateRemoved,
	})
}

// PublishAll queues the current state of every camera. It is called on
// start and on every MQTT reconnect so retained state survives a broker
// restart.
func (p *Plane) PublishAll() {
	p.camerasMu.RLock()
	cameras := p.cameras
	p.camerasMu.RUnlock()
	if cameras == nil {
		return
	}

	for _, info := range cameras.Devices() {
		p.enqueue(stateUpdate{state: newState(info, "")})
	}
}

// Stats returns the control plane counters.
func (p *Plane) Stats() Stats {
	return Stats{
		Commands:  p.commands.Load(),
		Rejected:  p.rejected.Load(),
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

func (p *Plane) enqueue(u stateUpdate) {
	select {
	case p.updates <- u:
	default:
		p.dropped.Add(1)
		p.getLogger().Warn("camera state update dropped", "camera", u.state.Name)
	}
}

// HandleCommand applies a command received on a camera command topic.
// It is the mqtt.MessageHandler for camserver/command/camera/+.
func (p *Plane) HandleCommand(topic string, payload []byte) error {
	p.commands.Add(1)

	name, ok := mqtt.Topics{}.CameraFromTopic(topic)
	if !ok {
		p.rejected.Add(1)
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		p.rejected.Add(1)
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.Enabled == nil {
		p.rejected.Add(1)
		return fmt.Errorf("%w: missing \"enabled\"", ErrInvalidCommand)
	}

	p.camerasMu.RLock()
	cameras := p.cameras
	p.camerasMu.RUnlock()

	if cameras == nil {
		p.rejected.Add(1)
		return fmt.Errorf("%w: %s", ErrUnknownCamera, name)
	}
	if _, ok := cameras.DeviceByName(name); !ok {
		p.rejected.Add(1)
		return fmt.Errorf("%w: %s", ErrUnknownCamera, name)
	}

	p.getLogger().Info("received camera command", "camera", name, "enabled", *cmd.Enabled)
	cameras.SetEnabledByName(name, *cmd.Enabled)
	return nil
}

func (p *Plane) publishLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case u := <-p.updates:
			p.publish(u)
		case <-ctx.Done():
			return
		case <-p.done:
			p.drain()
			return
		}
	}
}

func (p *Plane) drain() {
	for {
		select {
		case u := <-p.updates:
			p.publish(u)
		default:
			return
		}
	}
}

func (p *Plane) publish(u stateUpdate) {
	topic := mqtt.Topics{}.CameraState(u.state.Name)

	var payload []byte
	if !u.removed {
		var err error
		payload, err = json.Marshal(u.state)
		if err != nil {
			p.failed.Add(1)
			p.getLogger().Error("failed to marshal camera state", "camera", u.state.Name, "error", err)
			return
		}
	}

	if err := p.client.Publish(topic, payload, p.cfg.QoS, true); err != nil {
		p.failed.Add(1)
		p.getLogger().Warn("failed to publish camera state", "camera", u.state.Name, "error", err)
		return
	}
	p.published.Add(1)
}
