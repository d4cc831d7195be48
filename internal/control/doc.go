// Package control exposes camera enable/disable over MQTT.
//
// # Topics
//
//	camserver/command/camera/{name}   in    {"enabled": true|false}
//	camserver/state/camera/{name}     out   retained State, cleared on removal
//
// Commands for unknown cameras and malformed payloads are rejected and
// logged by the MQTT client; nothing is sent back. A command that does not
// change the flag publishes nothing, since the retained state is already
// current.
//
// # Usage
//
//	plane := control.New(mqttClient, control.Config{QoS: 1})
//	srv, _ := camera.New(cfg, camera.WithStateListener(plane.Notify))
//	if err := plane.Start(ctx, srv); err != nil {
//	    return err
//	}
//	mqttClient.SetOnConnect(plane.PublishAll)
//	defer plane.Stop()
package control
