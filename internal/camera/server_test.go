package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestServer(t *testing.T, capacity int, opts ...Option) *Server {
	t.Helper()
	srv, err := New(Config{Capacity: capacity}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return srv
}

// waitFor polls cond until it is true or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNew_DefaultCapacity(t *testing.T) {
	srv := newTestServer(t, 0)
	if srv.Capacity() != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", srv.Capacity(), DefaultCapacity)
	}
}

func TestNew_InvalidCapacity(t *testing.T) {
	if _, err := New(Config{Capacity: -3}); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("New() error = %v, want ErrInvalidCapacity", err)
	}
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	first := GetOrCreate(8)
	second := GetOrCreate(8)
	third := GetOrCreate(16)

	if first != second || second != third {
		t.Fatal("GetOrCreate() returned different instances")
	}
	if third.Capacity() != 8 {
		t.Errorf("Capacity() = %d, want 8 (first caller wins)", third.Capacity())
	}
}

func TestServer_EndToEnd(t *testing.T) {
	srv := newTestServer(t, 8)

	sources := make([]*StubSource, 0, 3)
	for id := 1; id <= 3; id++ {
		name := fmt.Sprintf("cam%d", id)
		src := NewStubSource(name)
		if err := srv.Register(id, name, 640, 480, 30, src); err != nil {
			t.Fatalf("Register(%d) error = %v", id, err)
		}
		sources = append(sources, src)
	}

	if err := srv.StartScheduler(context.Background()); err != nil {
		t.Fatalf("StartScheduler() error = %v", err)
	}
	if !srv.Running() {
		t.Error("Running() = false after StartScheduler")
	}

	waitFor(t, 2*time.Second, func() bool {
		return srv.SchedulerStats().Passes >= 3
	})

	for _, src := range sources {
		if src.Frames() < 1 {
			t.Errorf("source %s produced %d frames, want >= 1", src.Name(), src.Frames())
		}
	}

	if got := len(srv.ListCaptureSources()); got != 3 {
		t.Errorf("ListCaptureSources() length = %d, want 3", got)
	}
}

func TestServer_CapacityExceeded(t *testing.T) {
	srv := newTestServer(t, 8)

	for id := 1; id <= 8; id++ {
		name := fmt.Sprintf("cam%d", id)
		if err := srv.Register(id, name, 640, 480, 30, NewStubSource(name)); err != nil {
			t.Fatalf("Register(%d) error = %v", id, err)
		}
	}
	if err := srv.StartScheduler(context.Background()); err != nil {
		t.Fatalf("StartScheduler() error = %v", err)
	}

	err := srv.Register(9, "cam9", 640, 480, 30, NewStubSource("cam9"))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Register(9) error = %v, want ErrCapacityExceeded", err)
	}

	if got := len(srv.ListCaptureSources()); got != 8 {
		t.Errorf("ListCaptureSources() length = %d, want 8", got)
	}
	if !srv.Running() {
		t.Error("scheduler stopped after a rejected registration")
	}
}

func TestServer_EnabledByKey(t *testing.T) {
	srv := newTestServer(t, 8)
	if err := srv.Register(1, "front", 640, 480, 30, NewStubSource("front")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := srv.Register(2, "rear", 640, 480, 30, NewStubSource("rear"), StartDisabled()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if !srv.IsEnabledByID(1) || !srv.IsEnabledByName("front") {
		t.Error("front should start enabled")
	}
	if srv.IsEnabledByID(2) || srv.IsEnabledByName("rear") {
		t.Error("rear should start disabled")
	}

	srv.SetEnabledByName("front", false)
	if srv.IsEnabledByID(1) {
		t.Error("IsEnabledByID(1) = true after SetEnabledByName(front, false)")
	}

	srv.SetEnabledByID(2, true)
	if !srv.IsEnabledByName("rear") {
		t.Error("IsEnabledByName(rear) = false after SetEnabledByID(2, true)")
	}
}

func TestServer_UnknownKeyIsNoOp(t *testing.T) {
	srv := newTestServer(t, 8)

	if srv.IsEnabledByID(77) || srv.IsEnabledByName("ghost") {
		t.Fatal("unknown camera reported enabled")
	}

	srv.SetEnabledByID(77, true)
	srv.SetEnabledByName("ghost", true)

	if srv.IsEnabledByID(77) || srv.IsEnabledByName("ghost") {
		t.Error("unknown camera reported enabled after SetEnabled")
	}
	if srv.Len() != 0 {
		t.Errorf("Len() = %d, want 0", srv.Len())
	}
}

func TestServer_StartSchedulerTwice(t *testing.T) {
	srv := newTestServer(t, 8)
	if err := srv.Register(1, "cam1", 640, 480, 30, NewStubSource("cam1")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	ctx := context.Background()
	if err := srv.StartScheduler(ctx); err != nil {
		t.Fatalf("StartScheduler() error = %v", err)
	}
	workerID := srv.SchedulerStats().WorkerID
	if err := srv.StartScheduler(ctx); err != nil {
		t.Fatalf("second StartScheduler() error = %v", err)
	}
	if srv.SchedulerStats().WorkerID != workerID {
		t.Error("second StartScheduler() replaced the worker")
	}
}

func TestServer_Stop(t *testing.T) {
	srv := newTestServer(t, 8)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Stop before start is a no-op.
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop() before start error = %v", err)
	}

	src := NewStubSource("cam1")
	if err := srv.Register(1, "cam1", 640, 480, 30, src); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := srv.StartScheduler(context.Background()); err != nil {
		t.Fatalf("StartScheduler() error = %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return src.Frames() > 0 })

	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if srv.Running() {
		t.Error("Running() = true after Stop")
	}

	frames := src.Frames()
	time.Sleep(20 * time.Millisecond)
	if src.Frames() != frames {
		t.Error("frames still being produced after Stop")
	}

	// Registry operations keep working once scheduling has stopped.
	srv.SetEnabledByID(1, false)
	if srv.IsEnabledByID(1) {
		t.Error("SetEnabledByID after Stop had no effect")
	}
	if err := srv.Register(2, "cam2", 640, 480, 30, NewStubSource("cam2")); err != nil {
		t.Errorf("Register() after Stop error = %v", err)
	}
}

func TestServer_StopWaitsForSlowPass(t *testing.T) {
	srv := newTestServer(t, 8)

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	slow := FrameSourceFunc(func(context.Context, FrameRequest) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	if err := srv.Register(1, "slow", 640, 480, 30, slow); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := srv.StartScheduler(context.Background()); err != nil {
		t.Fatalf("StartScheduler() error = %v", err)
	}
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := srv.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop() error = %v, want context.DeadlineExceeded while a pass is blocked", err)
	}

	close(release)
	waitFor(t, 2*time.Second, func() bool { return !srv.Running() })
}

func TestServer_StateListener(t *testing.T) {
	var mu sync.Mutex
	var events []StateEvent
	srv := newTestServer(t, 8, WithStateListener(func(e StateEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}))

	if err := srv.Register(1, "cam1", 640, 480, 30, NewStubSource("cam1")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	srv.SetEnabledByID(1, false)
	srv.SetEnabledByID(1, false) // unchanged, no event
	srv.SetEnabledByName("cam1", true)
	srv.SetEnabledByName("ghost", false) // unknown, no event
	if !srv.Remove(1) {
		t.Fatal("Remove(1) = false")
	}
	if srv.Remove(1) {
		t.Error("second Remove(1) = true")
	}

	want := []StateEventType{StateRegistered, StateDisabled, StateEnabled, StateRemoved}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, e := range events {
		if e.Type != want[i] {
			t.Errorf("event %d = %s, want %s", i, e.Type, want[i])
		}
		if e.Camera.ID != 1 || e.Camera.Name != "cam1" {
			t.Errorf("event %d camera = %+v", i, e.Camera)
		}
	}
}

func TestServer_RemovedCameraEmitsNoStateChange(t *testing.T) {
	var mu sync.Mutex
	var events []StateEvent
	srv := newTestServer(t, 8, WithStateListener(func(e StateEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}))

	if err := srv.Register(1, "cam1", 640, 480, 30, NewStubSource("cam1")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	dev, _ := srv.Device(1)
	if !srv.Remove(1) {
		t.Fatal("Remove(1) = false")
	}

	// A lookup that lost the race with Remove still holds the old pointer.
	srv.setEnabled(dev, false)

	mu.Lock()
	defer mu.Unlock()
	if last := events[len(events)-1]; last.Type != StateRemoved {
		t.Errorf("last event = %s, want %s", last.Type, StateRemoved)
	}
	if !dev.Enabled() {
		t.Error("removed camera's enabled flag was modified")
	}
}

func TestServer_RemoveReportsRemovedCamera(t *testing.T) {
	var mu sync.Mutex
	var removed []Info
	srv := newTestServer(t, 8, WithStateListener(func(e StateEvent) {
		if e.Type != StateRemoved {
			return
		}
		mu.Lock()
		removed = append(removed, e.Camera)
		mu.Unlock()
	}))

	if err := srv.Register(1, "old", 640, 480, 30, NewStubSource("old")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	srv.Remove(1)
	if err := srv.Register(1, "new", 640, 480, 30, NewStubSource("new")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	srv.Remove(1)

	mu.Lock()
	defer mu.Unlock()
	if len(removed) != 2 || removed[0].Name != "old" || removed[1].Name != "new" {
		t.Errorf("removed events = %+v, want old then new", removed)
	}
}

func TestServer_FaultHandlerOption(t *testing.T) {
	faults := make(chan FrameFault, 16)
	srv := newTestServer(t, 8, WithFaultHandler(func(f FrameFault) {
		select {
		case faults <- f:
		default:
		}
	}))

	errNoDevice := errors.New("no such device")
	if err := srv.Register(5, "broken", 640, 480, 30, FrameSourceFunc(func(context.Context, FrameRequest) error {
		return errNoDevice
	})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := srv.StartScheduler(context.Background()); err != nil {
		t.Fatalf("StartScheduler() error = %v", err)
	}

	select {
	case f := <-faults:
		if f.DeviceID != 5 || f.DeviceName != "broken" || !errors.Is(f.Err, errNoDevice) {
			t.Errorf("fault = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no fault reported")
	}
	if !srv.Running() {
		t.Error("scheduler stopped after fault")
	}
}
