package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-camserver/internal/faults"
)

// handleListFaults returns journalled frame faults, newest first.
//
// Query parameters:
//   - camera: filter by camera name
//   - since: RFC 3339 timestamp; only faults at or after it
//   - limit: page size (default 50, max 500)
//   - offset: pagination offset
func (s *Server) handleListFaults(w http.ResponseWriter, r *http.Request) {
	if s.faults == nil {
		writeUnavailable(w, "fault journal not configured")
		return
	}

	q := r.URL.Query()
	filter := faults.Filter{CameraName: q.Get("camera")}

	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.faults.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list frame faults", "error", err)
		writeInternalError(w, "failed to list faults")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
