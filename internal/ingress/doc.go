// Package ingress owns the action core's single MQTT subscription
// surface. It resolves every inbound message to an owning Device,
// updates that device's cached values with a group-specific parser,
// and fans the raw (device_id, topic, payload) tuple out to the
// Action, Camera, and Storage subsystem queues.
//
// Resolution failures and parse failures are logged and swallowed —
// ingestion must never stop, and a message about an unknown device is
// still fanned out so subsystems that don't need device identity
// (camera/storage wildcard traffic) can still react to it.
package ingress
