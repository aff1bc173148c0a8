package camera

import "errors"

var (
	ErrNoDevice      = errors.New("camera: no device for topic")
	ErrNoCamera      = errors.New("camera: device has no camera")
	ErrNoSource      = errors.New("camera: camera has no usable snapshot source")
	ErrFetchFailed   = errors.New("camera: snapshot fetch failed")
	ErrDecodeJPEG    = errors.New("camera: could not decode JPEG dimensions")
)
