package control

import "errors"

// Errors returned by command handling. The MQTT client logs them; they
// never reach the sender.
var (
	// ErrInvalidTopic is returned for a command topic without a camera name.
	ErrInvalidTopic = errors.New("control: invalid command topic")

	// ErrInvalidCommand is returned for a payload that is not {"enabled": bool}.
	ErrInvalidCommand = errors.New("control: invalid command payload")

	// ErrUnknownCamera is returned when the named camera is not registered.
	ErrUnknownCamera = errors.New("control: unknown camera")
)
