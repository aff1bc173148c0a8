package action

import (
	"context"

	"github.com/nerrad567/graylogic-action-core/internal/device"
)

// fakeDevices is a minimal in-memory deviceLookup for tests.
type fakeDevices struct {
	byID map[int]*device.Device
}

func newFakeDevices(devices ...*device.Device) *fakeDevices {
	m := make(map[int]*device.Device, len(devices))
	for _, d := range devices {
		m[d.ID] = d
	}
	return &fakeDevices{byID: m}
}

func (f *fakeDevices) GetDevice(_ context.Context, id int) (*device.Device, error) {
	d, ok := f.byID[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d, nil
}

func relayDevice(id int, prefix, clientID string) *device.Device {
	return &device.Device{
		ID:           id,
		Name:         "sw1",
		TopicPrefix:  prefix,
		MQTTClientID: clientID,
		Model: &device.DeviceModel{
			TopicSpec: &device.TopicSpec{
				Topics: map[string]device.TopicSchema{
					"input_event/1": {Type: "json"},
				},
				CommandTopics: map[string]device.TopicSchema{
					"relay/0/command": {Type: "enum", Values: []string{"on", "off"}},
				},
			},
		},
	}
}
