package control

import (
	"time"

	"github.com/nerrad567/gray-logic-camserver/internal/camera"
)

// Command is the payload accepted on camserver/command/camera/{name}.
//
//	{"enabled": false}
type Command struct {
	Enabled *bool `json:"enabled"`
}

// State is the retained payload on camserver/state/camera/{name}.
type State struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FPS       int       `json:"fps"`
	Event     string    `json:"event,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// stateUpdate is one queued state publication. A removed camera clears
// its retained state.
type stateUpdate struct {
	state   State
	removed bool
}

func newState(info camera.Info, event camera.StateEventType) State {
	return State{
		ID:        info.ID,
		Name:      info.Name,
		Enabled:   info.Enabled,
		Width:     info.Width,
		Height:    info.Height,
		FPS:       info.FPS,
		Event:     string(event),
		Timestamp: time.Now().UTC(),
	}
}
