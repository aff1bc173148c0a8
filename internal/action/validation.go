package action

import (
	"context"
	"fmt"

	"github.com/nerrad567/graylogic-action-core/internal/device"
)

// deviceLookup is the subset of device.Registry validation needs: a
// device by id, and its model's topic schemas.
type deviceLookup interface {
	GetDevice(ctx context.Context, id int) (*device.Device, error)
}

// maxNameLength mirrors the device package's own name bound.
const maxNameLength = 100

// Validate checks a's structural invariants and, where devices is
// non-nil, cross-references every chain node against the referenced
// device's model schema. devices may be nil to skip the schema checks
// (e.g. unit tests exercising structural validation alone).
func Validate(ctx context.Context, a *Action, devices deviceLookup) error {
	if a == nil {
		return fmt.Errorf("%w: nil action", ErrInvalidAction)
	}
	if a.Name == "" || len(a.Name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidAction, maxNameLength)
	}
	if a.Chain.If.Source != "io" {
		return ErrInvalidSource
	}
	if !validComparators[a.Chain.If.Cmp] {
		return fmt.Errorf("%w: %q", ErrInvalidComparator, a.Chain.If.Cmp)
	}
	if a.Chain.Success != nil && !validComparators[a.Chain.Success.Cmp] {
		return fmt.Errorf("%w: %q", ErrInvalidComparator, a.Chain.Success.Cmp)
	}
	if a.Chain.Error != nil && !validComparators[a.Chain.Error.Cmp] {
		return fmt.Errorf("%w: %q", ErrInvalidComparator, a.Chain.Error.Cmp)
	}

	if devices == nil {
		return nil
	}

	ifDevice, err := lookupDevice(ctx, devices, a.Chain.If.DeviceID)
	if err != nil {
		return err
	}
	if _, ok := ifDevice.Model.TelemetrySchema(a.Chain.If.Topic); !ok {
		return fmt.Errorf("%w: if topic %q on device %d", ErrTopicNotInSchema, a.Chain.If.Topic, a.Chain.If.DeviceID)
	}

	thenDevice, err := lookupDevice(ctx, devices, a.Chain.Then.DeviceID)
	if err != nil {
		return err
	}
	if _, ok := thenDevice.Model.CommandSchema(a.Chain.Then.Topic); !ok {
		return fmt.Errorf("%w: then topic %q on device %d", ErrTopicNotInSchema, a.Chain.Then.Topic, a.Chain.Then.DeviceID)
	}

	for _, branch := range []*BranchNode{a.Chain.Success, a.Chain.Error} {
		if branch == nil {
			continue
		}
		branchDevice, err := lookupDevice(ctx, devices, branch.DeviceID)
		if err != nil {
			return err
		}
		if _, ok := branchDevice.Model.CommandSchema(branch.Topic); !ok {
			return fmt.Errorf("%w: %s branch topic %q on device %d", ErrTopicNotInSchema, branch.Branch, branch.Topic, branch.DeviceID)
		}
	}

	return nil
}

func lookupDevice(ctx context.Context, devices deviceLookup, id int) (*device.Device, error) {
	d, err := devices.GetDevice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %w", ErrDeviceNotFound, id, err)
	}
	return d, nil
}
