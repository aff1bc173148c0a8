package action

import (
	"context"
	"fmt"
)

// Index is the engine's two topic sets, rebuilt from the action set
// whenever it changes: fully-qualified IF (trigger) topics and
// fully-qualified THEN/branch result topics, each mapped to the
// action IDs that care about them.
type Index struct {
	Trigger map[string][]int
	Result  map[string][]int
}

// IsTrigger reports whether topic is any action's fully-qualified IF
// topic.
func (idx *Index) IsTrigger(topic string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.Trigger[topic]
	return ok
}

// IsResult reports whether topic is any action's fully-qualified
// branch result topic.
func (idx *Index) IsResult(topic string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.Result[topic]
	return ok
}

// BuildIndex resolves every action's devices and computes its trigger
// and result topics. A device resolution failure for one action is
// recorded as an error but does not prevent the rest of the index
// from building — a single misconfigured Action must not block every
// other Action's hot-reload.
func BuildIndex(ctx context.Context, actions []Action, devices deviceLookup) (*Index, []error) {
	idx := &Index{
		Trigger: make(map[string][]int),
		Result:  make(map[string][]int),
	}
	var errs []error

	for i := range actions {
		a := &actions[i]

		ifDev, err := devices.GetDevice(ctx, a.Chain.If.DeviceID)
		if err != nil {
			errs = append(errs, fmt.Errorf("action %d (%s): if device: %w", a.ID, a.Name, err))
			continue
		}
		trigger := ifDev.FullTopic(a.Chain.If.Topic)
		idx.Trigger[trigger] = append(idx.Trigger[trigger], a.ID)

		thenDev, err := devices.GetDevice(ctx, a.Chain.Then.DeviceID)
		if err != nil {
			errs = append(errs, fmt.Errorf("action %d (%s): then device: %w", a.ID, a.Name, err))
			continue
		}

		for _, rt := range []string{
			effectiveResultTopic(a.Chain.Success, a.Chain.Then.ResultTopic),
			effectiveResultTopic(a.Chain.Error, a.Chain.Then.ResultTopic),
		} {
			if rt == "" {
				continue
			}
			full := thenDev.FullTopic(rt)
			idx.Result[full] = append(idx.Result[full], a.ID)
		}
	}

	return idx, errs
}

// effectiveResultTopic applies the branch's own result_topic, falling
// back to the THEN node's, matching the original handler's
// `n.result_topic or then_result_topic` precedence.
func effectiveResultTopic(branch *BranchNode, thenResultTopic string) string {
	if branch == nil {
		return ""
	}
	if branch.ResultTopic != "" {
		return branch.ResultTopic
	}
	return thenResultTopic
}
