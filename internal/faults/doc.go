// Package faults carries frame faults from the camera scheduler to
// durable and observable sinks.
//
// The Reporter is installed as the camera.FaultHandler. It converts each
// camera.FrameFault into a Fault with an ID and queues it; one goroutine
// then writes it to:
//
//   - the structured log
//   - the frame_faults SQLite table (SQLiteRepository)
//   - MQTT topic camserver/fault/camera/{name}
//   - InfluxDB measurement camera_frame_fault
//
// The queue is bounded. A full queue drops the fault and increments
// ReporterStats.Dropped, so a slow sink never stalls frame production.
//
// The StatsWriter samples scheduler counters on an interval and writes
// them to InfluxDB and the retained camserver/system/scheduler topic.
//
// # Usage
//
//	reporter := faults.NewReporter(faults.ReporterConfig{
//	    Repository: faults.NewSQLiteRepository(db.DB),
//	    Publisher:  mqttClient,
//	    Retention:  cfg.Faults.Retention(),
//	})
//	reporter.Start(ctx)
//	defer reporter.Stop()
//
//	srv, _ := camera.New(camera.Config{}, camera.WithFaultHandler(reporter.Handle))
package faults
