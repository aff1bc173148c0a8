package mqtt

import "fmt"

// TopicPrefixSystem is the base for the action core's own lifecycle
// topics (LWT, liveness), independent of any device's topic_prefix.
const TopicPrefixSystem = "graylogic/system"

// Topics provides builders for the action core's own system-level MQTT
// topics. Per-device topics (the bulk of the wire contract) are built
// directly from each Device's TopicPrefix and MQTTClientID by the
// ingress, action, camera, and storage packages, since their shape
// varies per device rather than following one fixed scheme.
type Topics struct{}

// SystemStatus returns the action core's own LWT/liveness topic.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// DeviceBase joins a device's topic_prefix and mqtt_client_id into the
// base every per-device topic is suffixed onto.
//
// Example: DeviceBase("cameras", "cam-01") -> "cameras/cam-01"
func (Topics) DeviceBase(prefix, clientID string) string {
	return fmt.Sprintf("%s/%s", prefix, clientID)
}
