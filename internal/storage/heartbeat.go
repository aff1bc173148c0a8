package storage

import (
	"context"
	"encoding/json"
	"time"
)

const heartbeatInterval = 5 * time.Second

// RunHeartbeatLoop publishes a heartbeat log entry for every enabled
// device every 5 seconds. It blocks until ctx is cancelled.
func (m *Manager) RunHeartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.heartbeatOnce(ctx)
		}
	}
}

func (m *Manager) heartbeatOnce(ctx context.Context) {
	devices, err := m.devices.ListEnabledDevices(ctx)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("storage: heartbeat failed to list devices", "error", err)
		}
		return
	}

	now := time.Now().UTC()
	for _, d := range devices {
		payload, err := json.Marshal(map[string]any{
			"event":     "heartbeat",
			"device_id": d.ID,
			"timestamp": now.Format(time.RFC3339),
		})
		if err != nil {
			continue
		}
		topic := d.FullTopic("log")
		if err := m.mqtt.Publish(topic, payload, 1, false); err != nil && m.logger != nil {
			m.logger.Warn("storage: heartbeat publish failed", "topic", topic, "error", err)
		}
	}
}
