package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-camserver/internal/camera"
	"github.com/nerrad567/gray-logic-camserver/internal/control"
	"github.com/nerrad567/gray-logic-camserver/internal/faults"
)

// lookupCamera resolves {key} as a numeric id first, then as a name.
func (s *Server) lookupCamera(r *http.Request) (*camera.Device, bool) {
	key := chi.URLParam(r, "key")
	if id, err := strconv.Atoi(key); err == nil {
		if dev, ok := s.cameras.Device(id); ok {
			return dev, true
		}
	}
	return s.cameras.DeviceByName(key)
}

// handleListCameras returns every camera in registration order.
//
// Query parameters:
//   - enabled: "true" or "false" to filter by the enabled flag
func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	cameras := s.cameras.Devices()

	if enabledStr := r.URL.Query().Get("enabled"); enabledStr != "" {
		want, err := strconv.ParseBool(enabledStr)
		if err != nil {
			writeBadRequest(w, "enabled must be true or false")
			return
		}
		filtered := make([]camera.Info, 0, len(cameras))
		for _, c := range cameras {
			if c.Enabled == want {
				filtered = append(filtered, c)
			}
		}
		cameras = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cameras":  cameras,
		"count":    len(cameras),
		"capacity": s.cameras.Capacity(),
	})
}

// handleGetCamera returns one camera.
func (s *Server) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.lookupCamera(r)
	if !ok {
		writeNotFound(w, "camera not found")
		return
	}
	writeJSON(w, http.StatusOK, dev.Info())
}

// handleSetCameraEnabled sets a camera's enabled flag. The body has the
// same shape as an MQTT camera command.
func (s *Server) handleSetCameraEnabled(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.lookupCamera(r)
	if !ok {
		writeNotFound(w, "camera not found")
		return
	}

	var cmd control.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.Enabled == nil {
		writeBadRequest(w, `"enabled" is required`)
		return
	}

	s.cameras.SetEnabledByID(dev.ID, *cmd.Enabled)
	s.logger.Info("camera enabled flag set via API",
		"camera_id", dev.ID,
		"camera", dev.Name,
		"enabled", *cmd.Enabled,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	writeJSON(w, http.StatusOK, dev.Info())
}

// SchedulerResponse is the body of GET /api/v1/scheduler.
type SchedulerResponse struct {
	Running   bool                  `json:"running"`
	Capacity  int                   `json:"capacity"`
	Cameras   int                   `json:"cameras"`
	Scheduler camera.Stats          `json:"scheduler"`
	Faults    *faults.ReporterStats `json:"faults,omitempty"`
}

// handleScheduler returns the frame worker counters.
func (s *Server) handleScheduler(w http.ResponseWriter, _ *http.Request) {
	resp := SchedulerResponse{
		Running:   s.cameras.Running(),
		Capacity:  s.cameras.Capacity(),
		Cameras:   s.cameras.Len(),
		Scheduler: s.cameras.SchedulerStats(),
	}
	if s.reporter != nil {
		stats := s.reporter.Stats()
		resp.Faults = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}
