package action

import "errors"

var (
	// ErrActionNotFound is returned when an action ID does not exist.
	ErrActionNotFound = errors.New("action: not found")

	// ErrActionExists is returned when creating an action whose name
	// already exists.
	ErrActionExists = errors.New("action: name already exists")

	// ErrInvalidAction is returned when an Action fails validation.
	ErrInvalidAction = errors.New("action: invalid")

	// ErrInvalidSource is returned when an IfNode's Source isn't "io".
	ErrInvalidSource = errors.New("action: if node source must be io")

	// ErrInvalidComparator is returned when a node's Cmp isn't one of
	// the closed comparator set.
	ErrInvalidComparator = errors.New("action: invalid comparator")

	// ErrDeviceNotFound is returned when a chain node references a
	// device that doesn't exist.
	ErrDeviceNotFound = errors.New("action: referenced device not found")

	// ErrTopicNotInSchema is returned when a chain node references a
	// topic its device's model doesn't declare.
	ErrTopicNotInSchema = errors.New("action: topic not declared in device model schema")

	// ErrPendingWaitDiscarded is logged by a worker whose Action was
	// deleted while its pending-wait was outstanding.
	ErrPendingWaitDiscarded = errors.New("action: pending wait discarded, action no longer exists")
)
