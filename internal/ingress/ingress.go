package ingress

import (
	"context"
	"time"

	"github.com/nerrad567/graylogic-action-core/internal/device"
	"github.com/nerrad567/graylogic-action-core/internal/queue"
)

// subscribeQoS is the QoS level every ingress subscription uses.
const subscribeQoS = 1

// Logger is the logging surface Ingress depends on.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MQTTClient is the subset of the mqtt package's Client that Ingress
// needs: subscribing to the device/model wildcards on startup.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
}

// DeviceRegistry is the subset of device.Registry Ingress needs: one
// lookup by MQTT client id, one full enabled-device list to compute
// subscriptions, and the liveness update called for every message
// resolved to a known device.
type DeviceRegistry interface {
	GetDeviceByClientID(ctx context.Context, clientID string) (*device.Device, error)
	ListEnabledDevices(ctx context.Context) ([]device.Device, error)
	SetLiveness(ctx context.Context, id int, status device.DeviceStatus, values map[string]any) error
}

// Ingress owns the single subscription surface for the action core. It
// normalizes every inbound message, updates the owning device's cached
// values, and fans the raw message out to the three subsystem queues.
type Ingress struct {
	client  MQTTClient
	devices DeviceRegistry

	actions *queue.Queue
	camera  *queue.Queue
	storage *queue.Queue

	logger Logger
}

// New builds an Ingress wired to the three subsystem queues it fans
// every message out to.
func New(client MQTTClient, devices DeviceRegistry, actions, camera, storage *queue.Queue) *Ingress {
	return &Ingress{
		client:  client,
		devices: devices,
		actions: actions,
		camera:  camera,
		storage: storage,
	}
}

// SetLogger attaches a logger.
func (i *Ingress) SetLogger(logger Logger) {
	i.logger = logger
}

// Start subscribes to every enabled device's topic subtree plus the
// generic Shelly/camera/storage wildcards. It must be called once per
// MQTT connection (the client restores subscriptions across
// reconnects on its own).
func (i *Ingress) Start(ctx context.Context) error {
	devices, err := i.devices.ListEnabledDevices(ctx)
	if err != nil {
		return err
	}

	for _, d := range devices {
		if d.TopicPrefix == "" || d.MQTTClientID == "" {
			continue
		}
		if err := i.client.Subscribe(deviceWildcard(d.TopicPrefix, d.MQTTClientID), subscribeQoS, i.handle); err != nil {
			return err
		}
	}

	for _, topic := range []string{shellyWildcard, cameraWildcard, storageWildcard} {
		if err := i.client.Subscribe(topic, subscribeQoS, i.handle); err != nil {
			return err
		}
	}

	return nil
}

// handle is the single MQTT message handler for every subscription.
// Per spec it never returns an error to the broker client — a failure
// to resolve the device is logged and the message is still fanned out
// (with DeviceID 0), so ingestion continues regardless.
func (i *Ingress) handle(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d, err := i.resolveDevice(ctx, topic)
	if err != nil {
		if i.logger != nil {
			i.logger.Warn("ingress: unresolved device, fanning out without device id", "topic", topic, "error", err)
		}
	}

	var deviceID int
	if d != nil {
		deviceID = d.ID
		i.updateValues(ctx, d, topic, payload)
	}

	i.fanOut(queue.Message{DeviceID: deviceID, Topic: topic, Payload: payload})
	return nil
}

// resolveDevice extracts the client id from topic and looks up the
// owning Device. It returns a nil Device (not an error) for topics
// that aren't in <prefix>/<client_id>/... form at all, such as the
// shared actions/* status topics, since those are never expected to
// resolve to one.
func (i *Ingress) resolveDevice(ctx context.Context, topic string) (*device.Device, error) {
	clientID := extractClientID(topic)
	if clientID == "" {
		return nil, nil //nolint:nilnil // no device-owned topic shape; not an error condition
	}
	d, err := i.devices.GetDeviceByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// extractClientID assumes the convention <prefix>/<client_id>/<rest>
// and returns the second path segment, or "" if topic has fewer than
// three segments.
func extractClientID(topic string) string {
	parts := splitTopic(topic)
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}

// updateValues applies the group-specific parser for this message's
// suffix and persists the updated values/last_seen for d. Persistence
// failures are logged, never propagated — ingestion must continue.
func (i *Ingress) updateValues(ctx context.Context, d *device.Device, topic string, payload []byte) {
	suffix, ok := resolveSuffix(topic, d.TopicPrefix, d.MQTTClientID)
	if !ok {
		return
	}

	values := map[string]any{suffix: parseValue(suffix, payload)}
	if err := i.devices.SetLiveness(ctx, d.ID, device.DeviceStatusOnline, values); err != nil {
		if i.logger != nil {
			i.logger.Error("ingress: failed to persist device liveness", "device_id", d.ID, "error", err)
		}
	}
}

// fanOut delivers msg to every subsystem queue with a non-blocking
// enqueue. A full queue drops the message and logs a warning; it never
// blocks ingestion.
func (i *Ingress) fanOut(msg queue.Message) {
	for _, q := range []*queue.Queue{i.actions, i.camera, i.storage} {
		if q == nil {
			continue
		}
		q.Enqueue(msg)
	}
}

func splitTopic(topic string) []string {
	var parts []string
	start := 0
	for idx := 0; idx < len(topic); idx++ {
		if topic[idx] == '/' {
			parts = append(parts, topic[start:idx])
			start = idx + 1
		}
	}
	parts = append(parts, topic[start:])
	return parts
}
