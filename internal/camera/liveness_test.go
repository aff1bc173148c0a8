package camera

import (
	"testing"
	"time"

	"github.com/nerrad567/graylogic-action-core/internal/device"
	"github.com/nerrad567/graylogic-action-core/internal/queue"
)

func TestPollDueWithNoLastSeen(t *testing.T) {
	d := device.Device{}
	if !pollDue(d, time.Now()) {
		t.Error("expected a device with no last_seen to always be due")
	}
}

func TestPollDueRespectsInterval(t *testing.T) {
	now := time.Now()
	recent := now.Add(-5 * time.Second)
	d := device.Device{LastSeen: &recent, PollInterval: 60, PollIntervalUnit: "sec"}
	if pollDue(d, now) {
		t.Error("expected the device not to be due yet")
	}

	stale := now.Add(-120 * time.Second)
	d.LastSeen = &stale
	if !pollDue(d, now) {
		t.Error("expected a stale device to be due")
	}
}

func TestDevicePollIntervalUnitConversion(t *testing.T) {
	d := device.Device{PollInterval: 2, PollIntervalUnit: "min"}
	if got := devicePollInterval(d); got != 120*time.Second {
		t.Errorf("devicePollInterval() = %v, want 120s", got)
	}
}

func TestPollOnceMarksHTTPCameraOnlineWithoutProbing(t *testing.T) {
	d := camDevice(1, "cameras", "cam1", device.Camera{ID: 1, SnapshotURL: "http://cam/snap.jpg"})
	devices := newFakeDeviceLookup(d)
	mqtt := &fakeMQTT{}
	m := New(devices, mqtt, nil, queue.New("camera", 4))

	m.pollOnce(t.Context())

	if len(devices.liveness) != 1 || devices.liveness[0].status != device.DeviceStatusOnline {
		t.Errorf("liveness calls = %+v, want one online call", devices.liveness)
	}
	if _, ok := mqtt.find("cameras/cam1/log"); !ok {
		t.Error("expected a status log publish")
	}
}

func TestPollOnceMarksDeviceWithNoStreamOffline(t *testing.T) {
	d := camDevice(1, "cameras", "cam1", device.Camera{ID: 1})
	devices := newFakeDeviceLookup(d)
	mqtt := &fakeMQTT{}
	m := New(devices, mqtt, nil, queue.New("camera", 4))

	m.pollOnce(t.Context())

	if len(devices.liveness) != 1 || devices.liveness[0].status != device.DeviceStatusOffline {
		t.Errorf("liveness calls = %+v, want one offline call", devices.liveness)
	}
}

func TestPollDeviceWithNoCamerasIsAlwaysOnline(t *testing.T) {
	d := &device.Device{ID: 1, Name: "relay1", TopicPrefix: "shellies", MQTTClientID: "relay1", Enabled: true}
	devices := newFakeDeviceLookup(d)
	mqtt := &fakeMQTT{}
	m := New(devices, mqtt, nil, queue.New("camera", 4))

	m.pollOnce(t.Context())

	if len(devices.liveness) != 1 || devices.liveness[0].status != device.DeviceStatusOnline {
		t.Errorf("liveness calls = %+v, want one online call for a camera-less device", devices.liveness)
	}
}

func TestPollDeviceProbesEveryCameraAndAggregatesOffline(t *testing.T) {
	d := &device.Device{
		ID: 1, Name: "cam1", TopicPrefix: "cameras", MQTTClientID: "cam1", Enabled: true,
		Cameras: []device.Camera{
			{ID: 1, SnapshotURL: "http://cam/snap.jpg"}, // always online, no probe
			{ID: 2},                                     // no source at all -> offline
		},
	}
	devices := newFakeDeviceLookup(d)
	mqtt := &fakeMQTT{}
	m := New(devices, mqtt, nil, queue.New("camera", 4))

	m.pollOnce(t.Context())

	if len(devices.liveness) != 1 || devices.liveness[0].status != device.DeviceStatusOffline {
		t.Errorf("liveness calls = %+v, want one offline call (one camera down)", devices.liveness)
	}

	logs := mqtt.all("cameras/cam1/log")
	if len(logs) != 2 {
		t.Fatalf("expected one status log per camera, got %d: %+v", len(logs), logs)
	}
}
