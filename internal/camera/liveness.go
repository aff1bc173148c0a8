package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/graylogic-action-core/internal/device"
)

const pollLoopInterval = time.Second

// defaultPollInterval is applied when a device declares no poll
// interval of its own.
const defaultPollInterval = 60 * time.Second

var unitMultipliers = map[string]float64{
	"ms":   0.001,
	"sec":  1,
	"min":  60,
	"hour": 3600,
	"day":  86400,
}

// pollDue reports whether d is due for a liveness check at now.
func pollDue(d device.Device, now time.Time) bool {
	if d.LastSeen == nil {
		return true
	}
	interval := devicePollInterval(d)
	return now.Sub(*d.LastSeen) >= interval
}

func devicePollInterval(d device.Device) time.Duration {
	if d.PollInterval <= 0 {
		return defaultPollInterval
	}
	mult, ok := unitMultipliers[d.PollIntervalUnit]
	if !ok {
		mult = 1
	}
	seconds := float64(d.PollInterval) * mult
	return time.Duration(seconds * float64(time.Second))
}

// RunLivenessLoop ticks every second, probing any enabled device whose
// poll interval has elapsed. It blocks until ctx is cancelled.
func (m *Manager) RunLivenessLoop(ctx context.Context) {
	ticker := time.NewTicker(pollLoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

func (m *Manager) pollOnce(ctx context.Context) {
	devices, err := m.devices.ListEnabledDevices(ctx)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("camera: poll loop failed to list devices", "error", err)
		}
		return
	}

	now := time.Now().UTC()
	for _, d := range devices {
		if !pollDue(d, now) {
			continue
		}
		m.pollDevice(ctx, d, now)
	}
}

// pollDevice probes every camera d owns and publishes a per-camera
// status log; the device as a whole is reported offline if any one of
// its cameras is offline. A device with no cameras is reported online
// unconditionally, matching the poll loop running unconditionally over
// every enabled device regardless of whether it is camera-bearing.
func (m *Manager) pollDevice(ctx context.Context, d device.Device, now time.Time) {
	if len(d.Cameras) == 0 {
		if err := m.devices.SetLiveness(ctx, d.ID, device.DeviceStatusOnline, nil); err != nil && m.logger != nil {
			m.logger.Warn("camera: liveness update failed", "device_id", d.ID, "error", err)
		}
		return
	}

	deviceStatus := device.DeviceStatusOnline
	for _, cam := range d.Cameras {
		status := m.probeCamera(ctx, cam)
		m.publishCameraStatus(d, cam.ID, status, now)
		if status != device.DeviceStatusOnline {
			deviceStatus = device.DeviceStatusOffline
		}
	}

	if err := m.devices.SetLiveness(ctx, d.ID, deviceStatus, nil); err != nil && m.logger != nil {
		m.logger.Warn("camera: liveness update failed", "device_id", d.ID, "error", err)
	}
}

// probeCamera reports a camera's current liveness: HTTP snapshot-URL
// cameras are assumed online (probing them would itself trigger a
// fetch); RTSP cameras are probed with a short ffprobe stream-open.
func (m *Manager) probeCamera(ctx context.Context, cam device.Camera) device.DeviceStatus {
	if cam.SnapshotURL != "" {
		return device.DeviceStatusOnline
	}

	src, ok := selectSource(cam)
	if !ok {
		return device.DeviceStatusOffline
	}
	if probeRTSP(ctx, m.ffprobeBin, src.url) {
		return device.DeviceStatusOnline
	}
	return device.DeviceStatusOffline
}

func (m *Manager) publishCameraStatus(d device.Device, cameraID int, status device.DeviceStatus, now time.Time) {
	payload, err := json.Marshal(map[string]any{
		"event":     "status",
		"camera_id": cameraID,
		"status":    string(status),
		"timestamp": now.Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	topic := d.FullTopic("log")
	if err := m.mqtt.Publish(topic, payload, 1, false); err != nil && m.logger != nil {
		m.logger.Warn("camera: status publish failed", "topic", topic, "error", fmt.Errorf("publish %s: %w", topic, err))
	}
}
