// Package mqtt provides MQTT client connectivity for the camera server.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	camserver/command/camera/{name}   enable/disable requests (subscribed)
//	camserver/state/camera/{name}     retained camera state
//	camserver/fault/camera/{name}     frame fault events
//	camserver/system/status           online/offline, doubles as LWT
//	camserver/system/scheduler        frame worker counters
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCameraCommands(), 1, handler)
//	err = client.PublishJSON(mqtt.Topics{}.CameraState("front"), state, true)
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) for anything beyond a local broker
//   - Set credentials via CAMSERVER_MQTT_USERNAME / CAMSERVER_MQTT_PASSWORD
package mqtt
