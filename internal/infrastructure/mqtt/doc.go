// Package mqtt provides MQTT client connectivity for the Gray Logic
// action core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and backoff
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The action core holds a single shared MQTT connection. Every
// subsystem (ingress, the action engine, the camera manager, the
// storage manager) subscribes and publishes through this one Client
// rather than opening its own connection.
//
//	Devices / Sensors / Cameras ↔ MQTT Broker ↔ Action Core
//
// Per-device topics are built from each device's topic_prefix and
// mqtt_client_id by the calling package (ingress, action, camera,
// storage); this package only owns the connection and the core's own
// system-status topic.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("cameras/+/snapshot/exe", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish("cameras/cam-01/snapshot", payload, 1, false)
package mqtt
