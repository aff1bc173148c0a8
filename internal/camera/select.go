package camera

import "github.com/nerrad567/graylogic-action-core/internal/device"

// source is a resolved snapshot input: either an HTTP(S) URL or an
// RTSP stream URL, tagged so the caller knows which fetcher to use.
type source struct {
	url    string
	isHTTP bool
}

// selectSource picks the camera's input following the fixed priority:
// explicit HTTP snapshot URL, the camera's own default stream, any
// "sub" stream, then any "main" stream.
func selectSource(cam device.Camera) (source, bool) {
	if cam.SnapshotURL != "" {
		return source{url: cam.SnapshotURL, isHTTP: true}, true
	}

	if cam.DefaultStream != "" {
		return source{url: cam.DefaultStream}, true
	}

	if url, ok := streamByKind(cam.Streams, "sub"); ok {
		return source{url: url}, true
	}
	if url, ok := streamByKind(cam.Streams, "main"); ok {
		return source{url: url}, true
	}

	return source{}, false
}

func streamByKind(streams []device.Stream, kind string) (string, bool) {
	for _, s := range streams {
		if s.Kind == kind {
			return s.URL, true
		}
	}
	return "", false
}

// cameraFor returns the first Camera owned by d, if any. A snapshot
// request addresses a device, not a specific camera, so this picks the
// first of possibly several, matching the original's
// Camera.query.filter_by(device_id=...).first() semantics.
func cameraFor(d *device.Device) (device.Camera, bool) {
	if d == nil || len(d.Cameras) == 0 {
		return device.Camera{}, false
	}
	return d.Cameras[0], true
}
