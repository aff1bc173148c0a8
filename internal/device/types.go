// Package device models the physical/logical endpoints the action core
// talks to over MQTT: devices, the models that describe their topic
// shape, and the topic schemas models are built from.
package device

import "time"

// Device represents a single addressable endpoint: a relay board, a
// camera, a storage target, or a Shelly-class sensor. Every MQTT topic
// an Action, the camera manager, or the storage manager subscribes to
// or publishes on is built from a Device's TopicPrefix and
// MQTTClientID.
type Device struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	ModelID      int    `json:"model_id"`
	TopicPrefix  string `json:"topic_prefix"`
	MQTTClientID string `json:"mqtt_client_id"`
	Enabled      bool   `json:"enabled"`

	// Parameters holds model-specific configuration: base_path for
	// storage devices, snapshot_url/streams for cameras, and so on.
	Parameters map[string]any `json:"parameters"`

	// Values holds the last observed reading per value key, updated by
	// the ingress layer as messages arrive. Not persisted per-key; the
	// whole map is written back to the devices row on change.
	Values map[string]any `json:"values"`

	Status   DeviceStatus `json:"status"`
	LastSeen *time.Time   `json:"last_seen,omitempty"`

	// PollInterval/PollIntervalUnit govern how often the camera
	// manager's liveness loop re-checks this device. Zero value means
	// the default of 60 seconds applies.
	PollInterval     int    `json:"poll_interval"`
	PollIntervalUnit string `json:"poll_interval_unit"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Model is populated by the repository alongside the device row; it
	// is never written independently through Device's own CRUD methods.
	Model *DeviceModel `json:"model,omitempty"`

	// Cameras holds the snapshot-capable streams this device owns.
	// Ownership is per-Device, not per-DeviceModel: two devices sharing
	// a model (two identical units of the same hardware) each have
	// their own network address and credentials.
	Cameras []Camera `json:"cameras,omitempty"`
}

// DeviceStatus is the liveness state of a device as tracked by the
// ingress layer and the camera manager's poll loop.
type DeviceStatus string

// DeviceStatus constants.
const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
	DeviceStatusUnknown DeviceStatus = "unknown"
)

// DeviceModel describes the shape of topics a class of device exposes:
// its topic schemas. Models are seed data maintained outside the
// action core's write path.
type DeviceModel struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	TopicSpec *TopicSpec `json:"topic_spec,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Camera is one snapshot-capable stream carried by a Device, e.g. a
// Gen-2 Shelly's RTSP sub-stream or an ONVIF camera's main stream.
type Camera struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	SnapshotURL   string   `json:"snapshot_url,omitempty"`
	DefaultStream string   `json:"default_stream,omitempty"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
	Streams       []Stream `json:"streams,omitempty"`
}

// Stream is a named RTSP (or HTTP) source for a camera. Kind is "main"
// or "sub", matching the priority order the snapshot fetcher uses when
// no explicit snapshot_url or default_stream is configured.
type Stream struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "main" or "sub"
	URL  string `json:"url"`
}

// TopicSpec is the "topic" kind schema a DeviceModel owns: the only
// schema kind the core consumes (the admin API's "config" and
// "function" schema kinds describe UI form layout and are never read
// here). It has two mappings, keyed by topic suffix relative to
// <prefix>/<client_id>: Topics (telemetry the device emits) and
// CommandTopics (commands the device accepts).
type TopicSpec struct {
	Topics        map[string]TopicSchema `json:"topics"`
	CommandTopics map[string]TopicSchema `json:"command_topics"`
}

// TopicSchema describes one topic's legal payload shape and, depending
// on which of TopicSpec's two maps it appears in, either polling hints
// (telemetry) or timeout/result-topic wiring (commands).
type TopicSchema struct {
	Type        string   `json:"type"` // bool, enum, number, file, json, void
	Values      []string `json:"values,omitempty"`
	Range       *Range   `json:"range,omitempty"`
	Comparators []string `json:"comparators,omitempty"`

	// Command-only fields.
	Timeout     int    `json:"timeout,omitempty"`
	TimeoutUnit string `json:"timeout_unit,omitempty"`
	ResultTopic string `json:"result_topic,omitempty"`

	// Telemetry-only fields.
	PollInterval     int    `json:"poll_interval,omitempty"`
	PollIntervalUnit string `json:"poll_interval_unit,omitempty"`
	PollTopic        string `json:"poll_topic,omitempty"`
	PollPayload      string `json:"poll_payload,omitempty"`
}

// Range bounds a numeric TopicSchema's legal values.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// HasComparator reports whether cmp is a legal comparator for this
// schema entry. An entry with no Comparators list accepts any of the
// closed comparator set.
func (s TopicSchema) HasComparator(cmp string) bool {
	if len(s.Comparators) == 0 {
		return true
	}
	for _, c := range s.Comparators {
		if c == cmp {
			return true
		}
	}
	return false
}

// DeepCopy creates a complete independent copy of the Device. All map
// fields are cloned so modifications to the copy do not affect the
// original. This is essential for cache isolation in Registry.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	cpy.Parameters = deepCopyMap(d.Parameters)
	cpy.Values = deepCopyMap(d.Values)

	if d.LastSeen != nil {
		t := *d.LastSeen
		cpy.LastSeen = &t
	}

	if d.Model != nil {
		cpy.Model = d.Model.DeepCopy()
	}

	if d.Cameras != nil {
		cpy.Cameras = make([]Camera, len(d.Cameras))
		for i, c := range d.Cameras {
			cpy.Cameras[i] = c.deepCopy()
		}
	}

	return &cpy
}

// DeepCopy creates a complete independent copy of the DeviceModel.
func (m *DeviceModel) DeepCopy() *DeviceModel {
	if m == nil {
		return nil
	}

	cpy := *m

	if m.TopicSpec != nil {
		cpy.TopicSpec = m.TopicSpec.deepCopy()
	}

	return &cpy
}

func (s *TopicSpec) deepCopy() *TopicSpec {
	if s == nil {
		return nil
	}
	cpy := TopicSpec{
		Topics:        deepCopySchemaMap(s.Topics),
		CommandTopics: deepCopySchemaMap(s.CommandTopics),
	}
	return &cpy
}

func deepCopySchemaMap(m map[string]TopicSchema) map[string]TopicSchema {
	if m == nil {
		return nil
	}
	cpy := make(map[string]TopicSchema, len(m))
	for k, v := range m {
		entry := v
		if v.Values != nil {
			entry.Values = append([]string(nil), v.Values...)
		}
		if v.Comparators != nil {
			entry.Comparators = append([]string(nil), v.Comparators...)
		}
		if v.Range != nil {
			r := *v.Range
			entry.Range = &r
		}
		cpy[k] = entry
	}
	return cpy
}

// TelemetrySchema looks up a topic suffix in the model's telemetry
// schemas. ok is false if the model has no topic spec or the suffix
// isn't declared.
func (m *DeviceModel) TelemetrySchema(suffix string) (schema TopicSchema, ok bool) {
	if m == nil || m.TopicSpec == nil {
		return TopicSchema{}, false
	}
	schema, ok = m.TopicSpec.Topics[suffix]
	return schema, ok
}

// CommandSchema looks up a topic suffix in the model's command
// schemas. ok is false if the model has no topic spec or the suffix
// isn't declared.
func (m *DeviceModel) CommandSchema(suffix string) (schema TopicSchema, ok bool) {
	if m == nil || m.TopicSpec == nil {
		return TopicSchema{}, false
	}
	schema, ok = m.TopicSpec.CommandTopics[suffix]
	return schema, ok
}

// FullTopic joins a device's topic prefix, client id, and a schema
// suffix into the fully-qualified topic the broker sees.
func (d *Device) FullTopic(suffix string) string {
	return d.TopicPrefix + "/" + d.MQTTClientID + "/" + suffix
}

func (c Camera) deepCopy() Camera {
	cpy := c
	if c.Streams != nil {
		cpy.Streams = make([]Stream, len(c.Streams))
		copy(cpy.Streams, c.Streams)
	}
	return cpy
}

// deepCopyMap creates a deep copy of a map[string]any. Nested maps and
// slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and
// slices. Primitives are copied by value since they are immutable.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
