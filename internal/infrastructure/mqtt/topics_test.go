package mqtt

import "testing"

func TestTopicsSystemStatus(t *testing.T) {
	got := Topics{}.SystemStatus()
	want := "graylogic/system/status"
	if got != want {
		t.Errorf("SystemStatus() = %q, want %q", got, want)
	}
}

func TestTopicsDeviceBase(t *testing.T) {
	got := Topics{}.DeviceBase("cameras", "cam-01")
	want := "cameras/cam-01"
	if got != want {
		t.Errorf("DeviceBase() = %q, want %q", got, want)
	}
}
