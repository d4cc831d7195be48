// Package influxdb provides InfluxDB connectivity for the camera server.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched metric writing, and health monitoring.
//
// # Measurements
//
//	camera_frame_fault   tags: camera, worker   fields: camera_id, pass, panicked, error
//	camera_scheduler     tags: worker           fields: passes, frames, faults, skipped,
//	                                            idle_waits, last_pass_ms, cameras,
//	                                            cameras_enabled
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // time-series output is optional
//	}
//	defer client.Close()
//
//	client.WriteSchedulerStats(influxdb.SchedulerPoint{Worker: "camera-frame-worker", Passes: 10})
//
// # Error Handling
//
// Writes are non-blocking; batch failures are delivered to the SetOnError
// callback wrapped in ErrWriteFailed. Connection and health check errors
// are returned directly.
package influxdb
