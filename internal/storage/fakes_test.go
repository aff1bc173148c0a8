package storage

import (
	"context"
	"sync"

	"github.com/nerrad567/graylogic-action-core/internal/device"
)

type fakeDeviceLookup struct {
	mu       sync.Mutex
	byClient map[string]*device.Device
	enabled  []device.Device
}

func newFakeDeviceLookup(devices ...*device.Device) *fakeDeviceLookup {
	byClient := make(map[string]*device.Device, len(devices))
	enabled := make([]device.Device, 0, len(devices))
	for _, d := range devices {
		byClient[d.MQTTClientID] = d
		if d.Enabled {
			enabled = append(enabled, *d)
		}
	}
	return &fakeDeviceLookup{byClient: byClient, enabled: enabled}
}

func (f *fakeDeviceLookup) GetDeviceByClientID(_ context.Context, clientID string) (*device.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byClient[clientID]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d, nil
}

func (f *fakeDeviceLookup) ListEnabledDevices(_ context.Context) ([]device.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled, nil
}

type fakePub struct {
	topic   string
	payload string
}

type fakeMQTT struct {
	mu        sync.Mutex
	published []fakePub
}

func (f *fakeMQTT) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, fakePub{topic: topic, payload: string(payload)})
	return nil
}

func (f *fakeMQTT) find(topic string) (fakePub, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.published {
		if p.topic == topic {
			return p, true
		}
	}
	return fakePub{}, false
}

func (f *fakeMQTT) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}
