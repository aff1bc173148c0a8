package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups,
// keyed by both numeric ID and mqtt_client_id (the latter is the hot
// path: every inbound MQTT message resolves its device by client ID).
//
// RefreshCache rebuilds the cache as a whole, then swaps the pointer
// under the lock — an immutable-snapshot-swap idiom, used here
// because every subsystem's
// subscription set is derived from the enabled device list and must
// never observe a half-rebuilt cache.
//
// All public methods are thread-safe.
type Registry struct {
	repo       Repository
	byID       map[int]*Device
	byClientID map[string]*Device
	cacheMu    sync.RWMutex
	logger     Logger
}

// NewRegistry creates a new device registry. The repository is used
// for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:       repo,
		byID:       make(map[int]*Device),
		byClientID: make(map[string]*Device),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the
// cache. This should be called on application startup and whenever an
// operator requests a hot-reload.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	byID := make(map[int]*Device, len(devices))
	byClientID := make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i].DeepCopy()
		byID[d.ID] = d
		if d.MQTTClientID != "" {
			byClientID[d.MQTTClientID] = d
		}
	}

	r.cacheMu.Lock()
	r.byID = byID
	r.byClientID = byClientID
	r.cacheMu.Unlock()

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by numeric ID. The returned device is a
// deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id int) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.byID[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.byID[d.ID] = d.DeepCopy()
	if d.MQTTClientID != "" {
		r.byClientID[d.MQTTClientID] = d.DeepCopy()
	}
	r.cacheMu.Unlock()

	return d, nil
}

// GetDeviceByClientID retrieves a device by its mqtt_client_id. This is
// the lookup every ingress message, Action node, and storage/camera
// handler performs to resolve the device that owns an incoming topic.
func (r *Registry) GetDeviceByClientID(ctx context.Context, clientID string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.byClientID[clientID]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	d, err := r.repo.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.byID[d.ID] = d.DeepCopy()
	r.byClientID[clientID] = d.DeepCopy()
	r.cacheMu.Unlock()

	return d, nil
}

// ListDevices retrieves all cached devices, sorted by name. The
// returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(_ context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	devices := make([]Device, 0, len(r.byID))
	for _, d := range r.byID {
		devices = append(devices, *d.DeepCopy())
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

// ListEnabledDevices retrieves all cached devices with Enabled set.
// Every subsystem uses this on startup and after hot-reload to build
// its subscription set.
func (r *Registry) ListEnabledDevices(_ context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var devices []Device
	for _, d := range r.byID {
		if d.Enabled {
			devices = append(devices, *d.DeepCopy())
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

// CreateDevice validates, persists, and caches a new device.
func (r *Registry) CreateDevice(ctx context.Context, d *Device) error {
	if err := ValidateDevice(d); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.byID[d.ID] = d.DeepCopy()
	if d.MQTTClientID != "" {
		r.byClientID[d.MQTTClientID] = d.DeepCopy()
	}
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", d.ID, "name", d.Name)
	return nil
}

// UpdateDevice validates, persists, and updates the cached device.
func (r *Registry) UpdateDevice(ctx context.Context, d *Device) error {
	if err := ValidateDevice(d); err != nil {
		return err
	}
	if err := r.repo.Update(ctx, d); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.byID[d.ID] = d.DeepCopy()
	if d.MQTTClientID != "" {
		r.byClientID[d.MQTTClientID] = d.DeepCopy()
	}
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", d.ID, "name", d.Name)
	return nil
}

// DeleteDevice removes a device from persistence and cache.
func (r *Registry) DeleteDevice(ctx context.Context, id int) error {
	r.cacheMu.RLock()
	existing, ok := r.byID[id]
	r.cacheMu.RUnlock()

	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.byID, id)
	if ok && existing.MQTTClientID != "" {
		delete(r.byClientID, existing.MQTTClientID)
	}
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetLiveness updates a device's status, last_seen timestamp, and
// observed values map, persisting the change and atomically replacing
// the cached entry. This is the only mutation path the ingress layer
// and camera poll loop use.
func (r *Registry) SetLiveness(ctx context.Context, id int, status DeviceStatus, values map[string]any) error {
	now := time.Now().UTC()
	merged := make(map[string]any)
	r.cacheMu.RLock()
	if cached, ok := r.byID[id]; ok {
		for k, v := range cached.Values {
			merged[k] = v
		}
	}
	r.cacheMu.RUnlock()
	for k, v := range values {
		merged[k] = v
	}
	if err := r.repo.UpdateLiveness(ctx, id, status, now, merged); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.byID[id]; ok {
		updated := cached.DeepCopy()
		updated.Status = status
		updated.LastSeen = &now
		for k, v := range values {
			if updated.Values == nil {
				updated.Values = make(map[string]any)
			}
			updated.Values[k] = v
		}
		r.byID[id] = updated
		if updated.MQTTClientID != "" {
			r.byClientID[updated.MQTTClientID] = updated.DeepCopy()
		}
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device liveness updated", "id", id, "status", status)
	return nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.byID)
}
