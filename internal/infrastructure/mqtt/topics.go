package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every camera server topic.
const TopicPrefix = "camserver"

// Topic prefixes beneath TopicPrefix.
const (
	// TopicPrefixCommand carries requests into the server.
	TopicPrefixCommand = TopicPrefix + "/command"

	// TopicPrefixState carries retained per-camera state.
	TopicPrefixState = TopicPrefix + "/state"

	// TopicPrefixFault carries frame fault events.
	TopicPrefixFault = TopicPrefix + "/fault"

	// TopicPrefixSystem carries server-wide status.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for camera server MQTT topics.
// Using these helpers keeps topic naming consistent between publishers
// and subscribers.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.CameraState("front-door")
//	// Returns: "camserver/state/camera/front-door"
type Topics struct{}

// CameraCommand returns the topic on which a camera accepts commands.
//
// Example: camserver/command/camera/front-door
func (Topics) CameraCommand(name string) string {
	return fmt.Sprintf("%s/camera/%s", TopicPrefixCommand, name)
}

// CameraState returns the retained state topic for a camera.
//
// Example: camserver/state/camera/front-door
func (Topics) CameraState(name string) string {
	return fmt.Sprintf("%s/camera/%s", TopicPrefixState, name)
}

// CameraFault returns the topic for a camera's frame fault events.
//
// Example: camserver/fault/camera/front-door
func (Topics) CameraFault(name string) string {
	return fmt.Sprintf("%s/camera/%s", TopicPrefixFault, name)
}

// SystemStatus returns the server online/offline topic. It doubles as the
// Last Will topic.
//
// Example: camserver/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// SchedulerStats returns the topic for frame scheduler counters.
//
// Example: camserver/system/scheduler
func (Topics) SchedulerStats() string {
	return TopicPrefixSystem + "/scheduler"
}

// AllCameraCommands returns a pattern matching commands for every camera.
//
// Pattern: camserver/command/camera/+
func (Topics) AllCameraCommands() string {
	return TopicPrefixCommand + "/camera/+"
}

// AllCameraStates returns a pattern matching every camera state topic.
//
// Pattern: camserver/state/camera/+
func (Topics) AllCameraStates() string {
	return TopicPrefixState + "/camera/+"
}

// AllCameraFaults returns a pattern matching every camera fault topic.
//
// Pattern: camserver/fault/camera/+
func (Topics) AllCameraFaults() string {
	return TopicPrefixFault + "/camera/+"
}

// CameraFromTopic extracts the camera name from a per-camera topic such as
// camserver/command/camera/front-door. It returns false if the topic does
// not have that shape.
func (Topics) CameraFromTopic(topic string) (string, bool) {
	for _, prefix := range []string{TopicPrefixCommand, TopicPrefixState, TopicPrefixFault} {
		name, ok := strings.CutPrefix(topic, prefix+"/camera/")
		if !ok {
			continue
		}
		if name == "" || strings.ContainsAny(name, "/+#") {
			return "", false
		}
		return name, true
	}
	return "", false
}
