// Package api implements the HTTP REST API of the camera server.
//
// This package provides:
//   - camera listing and lookup by numeric id or name
//   - enable/disable of a camera
//   - frame scheduler counters
//   - the frame fault journal
//   - a middleware stack (request ID, logging, recovery, body size limit)
//
// # Endpoints
//
//	GET  /api/v1/health
//	GET  /api/v1/cameras
//	GET  /api/v1/cameras/{key}
//	PUT  /api/v1/cameras/{key}/enabled   {"enabled": bool}
//	GET  /api/v1/scheduler
//	GET  /api/v1/faults?camera=&since=&limit=&offset=
//
// {key} is tried as a numeric camera id first, then as a camera name.
//
// # Graceful Degradation
//
// The server runs without MQTT, InfluxDB or the fault journal. Health
// reports each configured dependency; /faults answers 503 when no journal
// is configured.
package api
