package storage

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

// DeviceLookup resolves a device by its MQTT client id.
type DeviceLookup interface {
	GetDeviceByClientID(ctx context.Context, clientID string) (*device.Device, error)
	ListEnabledDevices(ctx context.Context) ([]device.Device, error)
}

// createRequest is the expected "…/file/.../create" payload shape.
type createRequest struct {
	File string `json:"file"`
	Ext  string `json:"ext"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Manager is the storage manager: it consumes file-create requests
// through the generic queue.Pool mixin (no synchronous ordering
// requirement, unlike the Action Engine) and runs an independent
// heartbeat loop.
type Manager struct {
	devices     DeviceLookup
	mqtt        MQTTPublisher
	audit       audit.Repository
	logger      Logger
	storageRoot string

	pool *queue.Pool
}

// New builds a Manager consuming from q. storageRoot anchors relative
// local-backend base paths.
func New(devices DeviceLookup, mqtt MQTTPublisher, auditRepo audit.Repository, q *queue.Queue, storageRoot string) *Manager {
	m := &Manager{devices: devices, mqtt: mqtt, audit: auditRepo, storageRoot: storageRoot}
	m.pool = queue.NewPool(q, defaultWorkers, isFileCreateRequest, m.process)
	return m
}

// SetLogger attaches a logger to the manager and its internal pool.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
	m.pool.SetLogger(logger)
}

// isFileCreateRequest is the relevance predicate: topic ends with
// "/create" and contains "/file/".
func isFileCreateRequest(msg queue.Message) bool {
	return strings.HasSuffix(msg.Topic, "/create") && strings.Contains(msg.Topic, "/file/")
}

// Run starts the dispatch loop; it blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	m.pool.Run(ctx)
}

// WaitTimeout drains in-flight workers with a bounded grace period.
func (m *Manager) WaitTimeout(timeout time.Duration) bool {
	return m.pool.WaitTimeout(timeout)
}

func (m *Manager) process(ctx context.Context, msg queue.Message) error {
	prefix, clientID, ok := splitDeviceTopic(msg.Topic)
	if !ok {
		return fmt.Errorf("%w: malformed topic %q", ErrNoDevice, msg.Topic)
	}

	var req createRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		m.publishCreated(prefix, clientID, false)
		return fmt.Errorf("storage: decode payload: %w", err)
	}
	if req.File == "" {
		m.publishCreated(prefix, clientID, false)
		return ErrMissingFile
	}

	d, err := m.devices.GetDeviceByClientID(ctx, clientID)
	if err != nil || d == nil {
		m.publishCreated(prefix, clientID, false)
		return fmt.Errorf("%w: %s/%s", ErrNoDevice, prefix, clientID)
	}

	content, err := base64.StdEncoding.DecodeString(req.File)
	if err != nil {
		m.publishCreated(prefix, clientID, false)
		return fmt.Errorf("storage: decode base64 payload: %w", err)
	}

	ext := strings.ToLower(strings.TrimPrefix(req.Ext, "."))
	if ext == "" {
		ext = "bin"
	}
	name := req.Name
	if name == "" {
		name = "file_" + time.Now().UTC().Format("2006-01-02_15-04-05")
	}

	relPath := joinRelPath(folderFor(ext), req.Path) + "/" + name + "." + ext

	backend, err := NewBackend(backendConfigFor(d), m.storageRoot)
	if err != nil {
		m.publishCreated(prefix, clientID, false)
		return fmt.Errorf("%w: %w", ErrUnknownKind, err)
	}

	reportedPath, err := backend.Put(ctx, relPath, content)
	if err != nil {
		m.publishCreated(prefix, clientID, false)
		return err
	}

	m.publishCreated(prefix, clientID, true)
	m.publishFileNew(prefix, clientID, reportedPath)
	m.auditFileSaved(ctx, d, name+"."+ext, reportedPath)
	return nil
}

// backendConfigFor derives a BackendConfig from a Device's model name
// and parameters, mirroring the original storage manager's
// model-name-driven dispatch ("local storage" vs FTP/SFTP targets).
func backendConfigFor(d *device.Device) BackendConfig {
	cfg := BackendConfig{Kind: "local"}
	if d.Model != nil {
		switch strings.ToLower(d.Model.Name) {
		case "ftp storage":
			cfg.Kind = "ftp"
		case "sftp storage":
			cfg.Kind = "sftp"
		}
	}

	cfg.BasePath = stringParam(d.Parameters, "base_path")
	if cfg.Kind == "local" && cfg.BasePath == "" {
		cfg.BasePath = "tmp"
	}
	if cfg.Kind != "local" {
		if root := stringParam(d.Parameters, "root_path"); root != "" {
			cfg.BasePath = root
		}
	}
	cfg.Host = stringParam(d.Parameters, "host")
	cfg.User = stringParam(d.Parameters, "user")
	cfg.Password = stringParam(d.Parameters, "password")
	cfg.Port = intParam(d.Parameters, "port")
	cfg.Passive = boolParam(d.Parameters, "passive")
	cfg.TLS = boolParam(d.Parameters, "tls")
	return cfg
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func intParam(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func boolParam(params map[string]any, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func (m *Manager) publishCreated(prefix, clientID string, success bool) {
	result := "error"
	if success {
		result = "success"
	}
	payload, _ := json.Marshal(result)
	topic := prefix + "/" + clientID + "/file/created"
	if err := m.mqtt.Publish(topic, payload, 1, false); err != nil && m.logger != nil {
		m.logger.Warn("storage: created publish failed", "topic", topic, "error", err)
	}
}

func (m *Manager) publishFileNew(prefix, clientID, path string) {
	payload, _ := json.Marshal(map[string]string{"path": path})
	topic := prefix + "/" + clientID + "/file/new"
	if err := m.mqtt.Publish(topic, payload, 1, false); err != nil && m.logger != nil {
		m.logger.Warn("storage: file/new publish failed", "topic", topic, "error", err)
	}
}

func (m *Manager) auditFileSaved(ctx context.Context, d *device.Device, filename, path string) {
	payload, _ := json.Marshal(map[string]any{
		"event":     "file_saved",
		"filename":  filename,
		"path":      path,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	topic := d.FullTopic("log")
	if err := m.mqtt.Publish(topic, payload, 1, false); err != nil && m.logger != nil {
		m.logger.Warn("storage: log publish failed", "topic", topic, "error", err)
	}

	if m.audit == nil {
		return
	}
	entry := &audit.AuditLog{
		Action:     audit.ActionFileSaved,
		EntityType: audit.EntityFile,
		EntityID:   path,
		Source:     "storage-manager",
		Details:    map[string]any{"device_id": d.ID, "filename": filename},
	}
	if err := m.audit.Create(ctx, entry); err != nil && m.logger != nil {
		m.logger.Warn("storage: audit create failed", "path", path, "error", err)
	}
}

// splitDeviceTopic extracts (prefix, client_id) from a topic of the
// form "<prefix>/<client_id>/...".
func splitDeviceTopic(topic string) (prefix, clientID string, ok bool) {
	parts := strings.SplitN(topic, "/", 3)
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
