package storage

import "errors"

var (
	ErrMissingFile = errors.New("storage: payload has no file content")
	ErrNoDevice    = errors.New("storage: no device for topic")
	ErrUnknownKind = errors.New("storage: device has no recognised storage backend")
	ErrWriteFailed = errors.New("storage: write failed")
)
