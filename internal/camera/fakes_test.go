package camera

import (
	"context"
	"sync"

	"github.com/nerrad567/graylogic-action-core/internal/device"
)

type fakeDeviceLookup struct {
	mu        sync.Mutex
	byClient  map[string]*device.Device
	enabled   []device.Device
	liveness  []livenessCall
}

type livenessCall struct {
	deviceID int
	status   device.DeviceStatus
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

func (f *fakeDeviceLookup) SetLiveness(_ context.Context, id int, status device.DeviceStatus, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveness = append(f.liveness, livenessCall{deviceID: id, status: status})
	return nil
}

type fakeMQTT struct {
	mu        sync.Mutex
	published []fakePub
}

type fakePub struct {
	topic   string
	payload string
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

func (f *fakeMQTT) all(topic string) []fakePub {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakePub
	for _, p := range f.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ source, _, _ string) ([]byte, error) {
	return f.data, f.err
}
