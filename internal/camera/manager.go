package camera

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/graylogic-action-core/internal/audit"
	"github.com/nerrad567/graylogic-action-core/internal/device"
	"github.com/nerrad567/graylogic-action-core/internal/queue"
)

const topicSuffixSnapshotExe = "/snapshot/exe"

const defaultWorkers = 4

// Logger is the logging surface Manager depends on.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MQTTPublisher is the publish surface Manager depends on.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// DeviceLookup resolves a device by the mqtt_client_id carried in an
// incoming snapshot-request topic; the topic_prefix is not part of the
// lookup.
type DeviceLookup interface {
	GetDeviceByClientID(ctx context.Context, clientID string) (*device.Device, error)
	ListEnabledDevices(ctx context.Context) ([]device.Device, error)
	SetLiveness(ctx context.Context, id int, status device.DeviceStatus, values map[string]any) error
}

// Manager is the camera manager: it consumes snapshot-request messages
// from a queue.Queue using queue.Pool (unlike the Action Engine, camera
// processing has no synchronous on-message requirement) and runs an
// independent liveness poll loop.
type Manager struct {
	devices DeviceLookup
	mqtt    MQTTPublisher
	audit   audit.Repository
	logger  Logger

	httpFetcher SnapshotFetcher
	rtspFetcher SnapshotFetcher
	ffprobeBin  string

	pool *queue.Pool
}

// New builds a Manager consuming from q.
func New(devices DeviceLookup, mqtt MQTTPublisher, auditRepo audit.Repository, q *queue.Queue) *Manager {
	m := &Manager{
		devices:     devices,
		mqtt:        mqtt,
		audit:       auditRepo,
		httpFetcher: newHTTPFetcher(),
		rtspFetcher: newRTSPFetcher(),
		ffprobeBin:  "ffprobe",
	}
	m.pool = queue.NewPool(q, defaultWorkers, isSnapshotRequest, m.process)
	return m
}

// SetLogger attaches a logger to the manager and its internal pool.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
	m.pool.SetLogger(logger)
}

// isSnapshotRequest is the relevance predicate: any topic ending with
// "/snapshot/exe".
func isSnapshotRequest(msg queue.Message) bool {
	return strings.HasSuffix(msg.Topic, topicSuffixSnapshotExe)
}

// Run starts the dispatch loop; it blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	m.pool.Run(ctx)
}

// WaitTimeout drains in-flight workers with a bounded grace period.
func (m *Manager) WaitTimeout(timeout time.Duration) bool {
	return m.pool.WaitTimeout(timeout)
}

// process handles one snapshot request: payload is the literal string
// "jpg" or "pdf".
func (m *Manager) process(ctx context.Context, msg queue.Message) error {
	format := strings.ToLower(strings.TrimSpace(string(msg.Payload)))
	prefix, clientID, ok := splitDeviceTopic(msg.Topic, topicSuffixSnapshotExe)
	if !ok {
		return fmt.Errorf("%w: malformed topic %q", ErrNoDevice, msg.Topic)
	}

	d, err := m.devices.GetDeviceByClientID(ctx, clientID)
	if err != nil || d == nil {
		return fmt.Errorf("%w: %s/%s", ErrNoDevice, prefix, clientID)
	}

	cam, ok := cameraFor(d)
	if !ok {
		return fmt.Errorf("%w: device %d", ErrNoCamera, d.ID)
	}

	src, ok := selectSource(cam)
	if !ok {
		return fmt.Errorf("%w: camera %d", ErrNoSource, cam.ID)
	}

	fetcher := m.rtspFetcher
	if src.isHTTP {
		fetcher = m.httpFetcher
	}

	jpg, err := fetcher.Fetch(ctx, src, cam.Username, cam.Password)
	if err != nil {
		m.publishSnapshotError(d, cam.ID, err)
		return err
	}

	out, ext := jpg, "jpg"
	if format == "pdf" {
		pdf, err := wrapJPEGAsPDF(jpg)
		if err != nil {
			m.publishSnapshotError(d, cam.ID, err)
			return err
		}
		out, ext = pdf, "pdf"
	}

	m.publishSnapshot(d, ext, out)
	m.auditSnapshot(ctx, d, cam.ID, ext)
	return nil
}

func (m *Manager) publishSnapshot(d *device.Device, ext string, data []byte) {
	payload, err := json.Marshal(map[string]string{
		"ext":  ext,
		"file": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		if m.logger != nil {
			m.logger.Error("camera: marshal snapshot failed", "device_id", d.ID, "error", err)
		}
		return
	}
	topic := d.FullTopic("snapshot")
	if err := m.mqtt.Publish(topic, payload, 1, false); err != nil && m.logger != nil {
		m.logger.Warn("camera: snapshot publish failed", "topic", topic, "error", err)
	}
}

func (m *Manager) publishSnapshotError(d *device.Device, cameraID int, cause error) {
	if m.logger != nil {
		m.logger.Error("camera: snapshot failed", "device_id", d.ID, "camera_id", cameraID, "error", cause)
	}
	payload, _ := json.Marshal(map[string]any{
		"event":     "error",
		"camera_id": cameraID,
		"error":     cause.Error(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	topic := d.FullTopic("log")
	if err := m.mqtt.Publish(topic, payload, 1, false); err != nil && m.logger != nil {
		m.logger.Warn("camera: error log publish failed", "topic", topic, "error", err)
	}
}

func (m *Manager) auditSnapshot(ctx context.Context, d *device.Device, cameraID int, ext string) {
	payload, _ := json.Marshal(map[string]any{
		"event":     "snapshot",
		"camera_id": cameraID,
		"ext":       ext,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	topic := d.FullTopic("log")
	if err := m.mqtt.Publish(topic, payload, 1, false); err != nil && m.logger != nil {
		m.logger.Warn("camera: audit log publish failed", "topic", topic, "error", err)
	}

	if m.audit == nil {
		return
	}
	entry := &audit.AuditLog{
		Action:     audit.ActionSnapshot,
		EntityType: audit.EntityCamera,
		EntityID:   fmt.Sprintf("%d", cameraID),
		Source:     "camera-manager",
		Details:    map[string]any{"device_id": d.ID, "ext": ext},
	}
	if err := m.audit.Create(ctx, entry); err != nil && m.logger != nil {
		m.logger.Warn("camera: audit create failed", "camera_id", cameraID, "error", err)
	}
}

// splitDeviceTopic extracts the (prefix, client_id) pair from a topic
// of the form "<prefix>/<client_id><suffix>".
func splitDeviceTopic(topic, suffix string) (prefix, clientID string, ok bool) {
	if !strings.HasSuffix(topic, suffix) {
		return "", "", false
	}
	base := strings.TrimSuffix(topic, suffix)
	parts := strings.SplitN(base, "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
