// Package camera implements the camera manager: it consumes
// "…/snapshot/exe" requests from the shared camera queue, fetches a
// frame over HTTP or RTSP, optionally wraps it as a single-page PDF,
// and publishes the result alongside an audit log entry. A separate
// liveness loop polls every enabled device's cameras on their
// configured interval and republishes status.
//
// # Snapshot source priority
//
// Resolving a Camera's input follows a fixed priority: an explicit
// HTTP snapshot URL, else the camera's default stream, else any "sub"
// stream, else any "main" stream (selectSource in select.go).
//
// # Fetchers
//
// SnapshotFetcher abstracts the two transports: httpFetcher (digest
// auth with basic-auth fallback on 401, optional TLS-verify skip) and
// rtspFetcher (a one-shot ffmpeg subprocess). Both return raw JPEG
// bytes or an error; the manager decides whether to wrap the result as
// PDF.
package camera
