package storage

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nerrad567/graylogic-action-core/internal/device"
	"github.com/nerrad567/graylogic-action-core/internal/queue"
)

func storageDevice(id int, prefix, clientID, modelName string, params map[string]any) *device.Device {
	return &device.Device{
		ID: id, Name: clientID, TopicPrefix: prefix, MQTTClientID: clientID, Enabled: true,
		Model:      &device.DeviceModel{Name: modelName},
		Parameters: params,
	}
}

func TestIsFileCreateRequest(t *testing.T) {
	if !isFileCreateRequest(queue.Message{Topic: "devices/1/file/snap/create"}) {
		t.Error("expected a .../file/.../create topic to be relevant")
	}
	if isFileCreateRequest(queue.Message{Topic: "devices/1/file/snap"}) {
		t.Error("expected a topic with no /create suffix to be irrelevant")
	}
	if isFileCreateRequest(queue.Message{Topic: "devices/1/other/create"}) {
		t.Error("expected a topic with no /file/ segment to be irrelevant")
	}
}

func TestManagerProcessWritesLocalFileAndPublishes(t *testing.T) {
	root := t.TempDir()
	d := storageDevice(1, "storage", "store1", "Local Storage", nil)
	devices := newFakeDeviceLookup(d)
	mqtt := &fakeMQTT{}

	m := New(devices, mqtt, nil, queue.New("storage", 4), root)

	content := base64.StdEncoding.EncodeToString([]byte("jpegbytes"))
	payload, _ := json.Marshal(createRequest{File: content, Ext: "jpg", Name: "snap1", Path: "cam1"})

	if err := m.process(t.Context(), queue.Message{Topic: "storage/store1/file/snap/create", Payload: payload}); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	created, ok := mqtt.find("storage/store1/file/created")
	if !ok {
		t.Fatal("expected a created publish")
	}
	if !strings.Contains(created.payload, "success") {
		t.Errorf("created payload = %q, want success", created.payload)
	}

	newMsg, ok := mqtt.find("storage/store1/file/new")
	if !ok {
		t.Fatal("expected a file/new publish")
	}
	if !strings.Contains(newMsg.payload, "images/cam1/snap1.jpg") {
		t.Errorf("file/new payload = %q, want path images/cam1/snap1.jpg", newMsg.payload)
	}

	if _, ok := mqtt.find("storage/store1/log"); !ok {
		t.Error("expected a file_saved log publish")
	}
}

func TestManagerProcessMissingFilePublishesError(t *testing.T) {
	root := t.TempDir()
	d := storageDevice(1, "storage", "store1", "Local Storage", nil)
	devices := newFakeDeviceLookup(d)
	mqtt := &fakeMQTT{}

	m := New(devices, mqtt, nil, queue.New("storage", 4), root)
	payload, _ := json.Marshal(createRequest{Ext: "jpg", Name: "snap1"})

	err := m.process(t.Context(), queue.Message{Topic: "storage/store1/file/snap/create", Payload: payload})
	if err == nil {
		t.Fatal("expected an error for a missing file payload")
	}

	created, ok := mqtt.find("storage/store1/file/created")
	if !ok || !strings.Contains(created.payload, "error") {
		t.Errorf("expected an error created publish, got %+v ok=%v", created, ok)
	}
}

func TestManagerProcessUnknownDeviceReturnsError(t *testing.T) {
	devices := newFakeDeviceLookup()
	mqtt := &fakeMQTT{}
	m := New(devices, mqtt, nil, queue.New("storage", 4), t.TempDir())

	payload, _ := json.Marshal(createRequest{File: "AA==", Ext: "jpg", Name: "snap1"})
	err := m.process(t.Context(), queue.Message{Topic: "storage/ghost/file/snap/create", Payload: payload})
	if err == nil {
		t.Error("expected an error for an unresolvable device")
	}
}

func TestBackendConfigForDispatchesByModelName(t *testing.T) {
	cases := []struct {
		model string
		want  string
	}{
		{"Local Storage", "local"},
		{"FTP Storage", "ftp"},
		{"SFTP Storage", "sftp"},
		{"Something Else", "local"},
	}
	for _, c := range cases {
		d := storageDevice(1, "storage", "store1", c.model, map[string]any{"host": "example.com"})
		cfg := backendConfigFor(d)
		if cfg.Kind != c.want {
			t.Errorf("backendConfigFor(model=%q).Kind = %q, want %q", c.model, cfg.Kind, c.want)
		}
	}
}

func TestBackendConfigForReadsParameters(t *testing.T) {
	params := map[string]any{
		"host": "ftp.example.com", "user": "bob", "password": "secret",
		"port": float64(2121), "passive": true, "root_path": "/incoming",
	}
	d := storageDevice(1, "storage", "store1", "FTP Storage", params)
	cfg := backendConfigFor(d)

	if cfg.Host != "ftp.example.com" || cfg.User != "bob" || cfg.Password != "secret" {
		t.Errorf("unexpected connection params: %+v", cfg)
	}
	if cfg.Port != 2121 {
		t.Errorf("Port = %d, want 2121", cfg.Port)
	}
	if !cfg.Passive {
		t.Error("expected Passive = true")
	}
	if cfg.BasePath != "/incoming" {
		t.Errorf("BasePath = %q, want /incoming", cfg.BasePath)
	}
}

func TestBackendConfigForLocalDefaultsBasePathToTmp(t *testing.T) {
	d := storageDevice(1, "storage", "store1", "Local Storage", nil)
	cfg := backendConfigFor(d)
	if cfg.BasePath != "tmp" {
		t.Errorf("BasePath = %q, want tmp", cfg.BasePath)
	}
}
