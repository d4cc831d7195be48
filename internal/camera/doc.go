// Package camera provides the camera registry and round-robin frame
// scheduler for Gray Logic camera servers.
//
// A small, fixed number of capture devices hang off the controller. Each is
// registered under a numeric id and a unique name together with a
// FrameSource supplied by the capture pipeline. One background worker then
// asks every camera for a frame in turn, forever, while other goroutines
// toggle cameras and look them up.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                           Server                             │
//	│                                                              │
//	│  ┌────────────────────┐        ┌────────────────────────┐    │
//	│  │      Registry      │◀───────│       Scheduler        │    │
//	│  │   (registry.go)    │snapshot│    (scheduler.go)      │    │
//	│  │                    │        │                        │    │
//	│  │ • ordered []*Device│        │ • one goroutine        │    │
//	│  │ • byID / byName    │        │ • round-robin passes   │    │
//	│  │ • copy-on-write    │        │ • 30ms idle backoff    │    │
//	│  └────────────────────┘        │ • fault isolation      │    │
//	│                                └───────────┬────────────┘    │
//	└────────────────────────────────────────────│─────────────────┘
//	                                             ▼
//	                                       FaultHandler
//	                              (internal/faults Reporter)
//
// # Usage
//
//	srv, err := camera.New(camera.Config{Capacity: 8},
//	    camera.WithLogger(log),
//	    camera.WithFaultHandler(reporter.Handle),
//	)
//	if err != nil {
//	    return err
//	}
//
//	if err := srv.Register(1, "front", 640, 480, 30, src); err != nil {
//	    return err // camera.ErrCapacityExceeded, camera.ErrDuplicateKey
//	}
//
//	srv.StartScheduler(ctx)
//	defer srv.Stop(context.Background())
//
//	srv.SetEnabledByName("front", false)
//
// # Thread Safety
//
// Registry mutations publish a fresh ordered slice under a mutex; the
// scheduler reads the published slice once per pass and calls frame
// sources with no lock held. Mutations therefore take effect at the next
// pass and never tear the one in progress.
//
// The enabled flag is advisory by default: the scheduler ticks disabled
// cameras too and the frame source decides what to do. Set
// SchedulerConfig.SkipDisabled to have the scheduler skip them.
package camera
