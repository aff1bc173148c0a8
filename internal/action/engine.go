package action

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/graylogic-action-core/internal/audit"
	"github.com/nerrad567/graylogic-action-core/internal/queue"
)

// Topic literals the engine publishes on. All are part of the bit-exact
// MQTT contract.
const (
	topicStatusDigest = "actions/status"
	topicIfTrigger    = "actions/if/trigger"
	topicThenCommand  = "actions/then/command"
	topicThenResult   = "actions/then/result"

	statusDigestInterval = 30 * time.Second
	watchdogInterval     = 5 * time.Second
	watchdogMaxSilence   = 2 * statusDigestInterval

	defaultWorkers = 8
)

// MQTTPublisher is the subset of mqtt.Client the engine needs to
// publish command and status messages.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// unitSeconds converts a timeout value/unit pair to seconds using the
// {ms, sec, min, hour} timeout unit table.
func unitSeconds(value int, unit string) float64 {
	switch unit {
	case "ms":
		return float64(value) * 0.001
	case "min":
		return float64(value) * 60
	case "hour":
		return float64(value) * 3600
	default: // "sec" and unrecognised units default to seconds
		return float64(value)
	}
}

// Engine drives the IF -> THEN -> EVALUATE state machine for every
// enabled Action, consuming from the actions queue directly rather
// than through the generic queue.Pool mixin: a branch-result message
// must signal its PendingWait synchronously in the dispatch loop
// itself (branch results must be observed synchronously, not from a worker),
// which the Pool's dequeue-then-async-dispatch shape doesn't support.
type Engine struct {
	registry *Registry
	devices  deviceLookup
	mqtt     MQTTPublisher
	audit    audit.Repository
	logger   Logger

	actionsQ *queue.Queue
	camera   *queue.Queue
	storage  *queue.Queue

	sem chan struct{}
	wg  sync.WaitGroup

	lastDigest sync.Mutex
	digestAt   time.Time

	fatal func(reason string)
}

// NewEngine builds an Engine. actionsQ is consumed directly; camera
// and storage are the sibling subsystem queues the engine re-injects
// its own published commands into so they can react to the engine's
// own actions.
func NewEngine(registry *Registry, devices deviceLookup, mqttClient MQTTPublisher, auditRepo audit.Repository, actionsQ, camera, storage *queue.Queue) *Engine {
	return &Engine{
		registry: registry,
		devices:  devices,
		mqtt:     mqttClient,
		audit:    auditRepo,
		actionsQ: actionsQ,
		camera:   camera,
		storage:  storage,
		sem:      make(chan struct{}, defaultWorkers),
		fatal:    func(string) {},
	}
}

// SetLogger attaches a logger.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetFatal installs the callback invoked when the watchdog detects
// status-digest starvation. Defaults to a no-op; production wiring
// should pass something that terminates the process for supervisor
// restart.
func (e *Engine) SetFatal(fn func(reason string)) {
	e.fatal = fn
}

// Run drives the dispatch loop, the 30s status digest, and the
// watchdog until ctx is cancelled. It blocks; call from its own
// goroutine. On return, in-flight THEN workers are not waited for —
// call WaitTimeout afterwards for the bounded shutdown grace period.
func (e *Engine) Run(ctx context.Context) {
	e.touchDigest()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); e.runDigestLoop(ctx) }()
	go func() { defer wg.Done(); e.runWatchdog(ctx) }()

	e.runDispatchLoop(ctx)
	wg.Wait()
}

// WaitTimeout blocks until all in-flight THEN workers finish or
// timeout elapses, whichever comes first.
func (e *Engine) WaitTimeout(timeout time.Duration) (finished bool) {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (e *Engine) runDispatchLoop(ctx context.Context) {
	for {
		msg, ok := e.actionsQ.Dequeue(ctx)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		e.dispatch(ctx, msg)
	}
}

// dispatch routes one dequeued message: result-topic messages are
// handled synchronously right here (no-lost-wake), trigger-topic
// messages spawn a bounded worker per matching idle Action.
func (e *Engine) dispatch(ctx context.Context, msg queue.Message) {
	idx := e.registry.Index()

	if idx.IsResult(msg.Topic) {
		e.handleResult(msg.Topic, msg.Payload)
		return
	}

	ids, ok := idx.Trigger[msg.Topic]
	if !ok {
		return
	}

	for _, id := range ids {
		rt := e.registry.Runtime(id)
		if rt == nil || rt.State() != StateIdle {
			continue
		}

		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		e.wg.Add(1)
		go func(rt *Runtime, topic string, payload []byte) {
			defer e.wg.Done()
			defer func() { <-e.sem }()
			e.tryFire(ctx, rt, topic, payload)
		}(rt, msg.Topic, msg.Payload)
	}
}

// handleResult is the synchronous "on_message" side of a branch wait:
// it must run in the dispatch loop itself, never in a spawned worker,
// so a fast result can never race ahead of RegisterWait.
func (e *Engine) handleResult(topic string, payload []byte) {
	value := ExtractScalar(payload)
	idx := e.registry.Index()
	for _, id := range idx.Result[topic] {
		rt := e.registry.Runtime(id)
		if rt == nil {
			continue
		}
		if w := rt.Wait(); w != nil {
			w.Observe(topic, value)
		}
	}
}

// tryFire re-validates the IF match (the trigger-topic index only
// tracks topic membership, not the comparator) and, on a genuine
// match, transitions the runtime to running and executes THEN.
func (e *Engine) tryFire(ctx context.Context, rt *Runtime, topic string, payload []byte) {
	a := rt.Action()
	extracted := ExtractScalar(payload)
	if !Compare(extracted, a.Chain.If.Match.Value, a.Chain.If.Cmp) {
		return
	}
	if !rt.TryStartRunning(payload, extracted) {
		return // already running: concurrent trigger lost the race, not an error
	}

	e.publishJSON(topicIfTrigger, map[string]any{
		"action_id": a.ID, "topic": topic, "payload": string(payload),
	})
	e.publishStatus(a.ID, StateRunning)
	e.auditLog(ctx, audit.ActionIfTrigger, a.ID, map[string]any{"topic": topic})

	e.executeThen(ctx, rt, a)
}

// executeThen runs the THEN command and, if branches are defined,
// including registering the pending-wait before the device command is
// published, so a fast device response can never race ahead of the wait.
func (e *Engine) executeThen(ctx context.Context, rt *Runtime, a *Action) {
	thenDev, err := e.devices.GetDevice(ctx, a.Chain.Then.DeviceID)
	if err != nil {
		e.fail(ctx, rt, a, "then device missing", err)
		return
	}

	cmd := a.Chain.Then.Command
	if cmd == ForwardIF {
		cmd = string(rt.IFPayload())
	}
	fullCmd := thenDev.FullTopic(a.Chain.Then.Topic)

	branches, resultTopics := e.buildBranchWaits(thenDev, a)

	var wait *PendingWait
	if len(branches) > 0 {
		wait = newPendingWait(branches)
		rt.RegisterWait(wait) // must precede the device-topic publish below
	}

	e.publishJSON(topicThenCommand, map[string]any{
		"action_id": a.ID, "topic": fullCmd, "command": cmd,
	})
	if err := e.mqtt.Publish(fullCmd, []byte(cmd), 1, false); err != nil && e.logger != nil {
		e.logger.Warn("action: then publish failed", "action_id", a.ID, "topic", fullCmd, "error", err)
	}
	e.reinject(a.Chain.Then.DeviceID, fullCmd, cmd)

	if wait == nil {
		e.finish(ctx, rt, a, StateSuccess)
		return
	}

	timeout := e.waitTimeout(a)
	done := make(chan struct{})
	timer := time.AfterFunc(timeout, func() { close(done) })
	defer timer.Stop()

	wait.Wait(done)

	if e.registry.Runtime(a.ID) != rt {
		// The Action was deleted or disabled while waiting: discard the wait.
		rt.ResetToIdle()
		if e.logger != nil {
			e.logger.Warn("action: branch wait dropped", "action_id", a.ID, "error", ErrPendingWaitDiscarded)
		}
		return
	}

	obsTopic, obsValue, observed := wait.Result()
	chosen, state := decideOutcome(a, obsTopic, obsValue, observed, branches)

	e.publishJSON(topicThenResult, map[string]any{
		"action_id":    a.ID,
		"result_topic": firstNonEmpty(resultTopics...),
		"matched":      observed,
		"payload":      obsValue,
	})

	if chosen != nil {
		e.runBranch(ctx, a, *chosen, rt.IFPayload())
	}
	e.finish(ctx, rt, a, state)
}

// buildBranchWaits resolves the success/error branch match specs and
// their fully-qualified result topics (always off the THEN device, not
// the branch's own device — the original handler's behaviour, kept
// deliberately since a branch's result is a reply to the THEN command
// it waits on).
func (e *Engine) buildBranchWaits(thenDev interface{ FullTopic(string) string }, a *Action) (map[BranchName]branchWait, []string) {
	branches := make(map[BranchName]branchWait)
	var topics []string

	for name, node := range map[BranchName]*BranchNode{BranchSuccess: a.Chain.Success, BranchError: a.Chain.Error} {
		if node == nil {
			continue
		}
		rt := effectiveResultTopic(node, a.Chain.Then.ResultTopic)
		if rt == "" {
			continue
		}
		full := thenDev.FullTopic(rt)
		branches[name] = branchWait{topic: full, cmp: node.Cmp, match: node.Match.Value}
		topics = append(topics, full)
	}
	return branches, topics
}

// waitTimeout computes the minimum of the THEN node's timeout and any
// defined branch's timeout, normalised to seconds.
func (e *Engine) waitTimeout(a *Action) time.Duration {
	secs := unitSeconds(a.Chain.Then.Timeout, a.Chain.Then.TimeoutUnit)
	for _, node := range []*BranchNode{a.Chain.Success, a.Chain.Error} {
		if node == nil {
			continue
		}
		if s := unitSeconds(node.Timeout, node.TimeoutUnit); s < secs {
			secs = s
		}
	}
	if secs <= 0 {
		return time.Second
	}
	return time.Duration(secs * float64(time.Second))
}

// decideOutcome applies the outcome tie-break: error checked
// before success, and — when nothing matched but both branches exist —
// error wins by default.
func decideOutcome(a *Action, obsTopic, obsValue string, observed bool, branches map[BranchName]branchWait) (*BranchName, State) {
	hasSuccess := a.Chain.Success != nil
	hasError := a.Chain.Error != nil

	if !hasSuccess && !hasError {
		return nil, StateSuccess
	}

	if observed {
		if spec, ok := branches[BranchError]; ok && obsTopic == spec.topic && Compare(obsValue, spec.match, spec.cmp) {
			b := BranchError
			return &b, StateError
		}
		if spec, ok := branches[BranchSuccess]; ok && obsTopic == spec.topic && Compare(obsValue, spec.match, spec.cmp) {
			b := BranchSuccess
			return &b, StateSuccess
		}
	}

	if hasSuccess && hasError {
		b := BranchError
		return &b, StateError
	}
	return nil, StateSuccess
}

// runBranch publishes the chosen branch's evaluate record and its
// device command. ifPayload substitutes for a "$IF" command, just as
// it does for the THEN node.
func (e *Engine) runBranch(ctx context.Context, a *Action, branch BranchName, ifPayload []byte) {
	node := a.Chain.Success
	if branch == BranchError {
		node = a.Chain.Error
	}
	if node == nil {
		return
	}

	dev, err := e.devices.GetDevice(ctx, node.DeviceID)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("action: branch device missing", "action_id", a.ID, "branch", branch, "error", err)
		}
		return
	}

	cmd := node.Command
	if cmd == ForwardIF {
		cmd = string(ifPayload)
	}
	fullCmd := dev.FullTopic(node.Topic)
	e.publishJSON(fmt.Sprintf("actions/evaluate/%s/command", branch), map[string]any{
		"action_id": a.ID, "topic": fullCmd, "command": cmd,
	})
	if err := e.mqtt.Publish(fullCmd, []byte(cmd), 1, false); err != nil && e.logger != nil {
		e.logger.Warn("action: branch publish failed", "action_id", a.ID, "topic", fullCmd, "error", err)
	}
	e.reinject(node.DeviceID, fullCmd, cmd)
}

// finish transitions the runtime to state then idle, publishing both.
func (e *Engine) finish(ctx context.Context, rt *Runtime, a *Action, state State) {
	rt.Finish(state)
	e.publishStatus(a.ID, state)
	e.auditLog(ctx, string(state), a.ID, nil)
	rt.Finish(StateIdle)
	e.publishStatus(a.ID, StateIdle)
}

// fail marks the runtime as error (skipping any branch evaluation) and
// audit-logs the cause.
func (e *Engine) fail(ctx context.Context, rt *Runtime, a *Action, reason string, cause error) {
	if e.logger != nil {
		e.logger.Error("action: execution failed", "action_id", a.ID, "reason", reason, "error", cause)
	}
	e.auditLog(ctx, audit.ActionEvaluate, a.ID, map[string]any{"reason": reason, "error": cause.Error()})
	e.finish(ctx, rt, a, StateError)
}

// reinject fans the engine's own published command back into the
// camera and storage queues (and the actions queue, for sibling
// Actions) so sibling subsystems can react to this Action's effects —
// explicit message passing through the queues rather than direct
// cross-manager calls.
func (e *Engine) reinject(deviceID int, topic, command string) {
	msg := queue.Message{DeviceID: deviceID, Topic: topic, Payload: []byte(command)}
	for _, q := range []*queue.Queue{e.actionsQ, e.camera, e.storage} {
		if q != nil {
			q.Enqueue(msg)
		}
	}
}

func (e *Engine) publishJSON(topic string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("action: marshal failed", "topic", topic, "error", err)
		}
		return
	}
	if err := e.mqtt.Publish(topic, b, 1, false); err != nil && e.logger != nil {
		e.logger.Warn("action: publish failed", "topic", topic, "error", err)
	}
}

func (e *Engine) publishStatus(actionID int, state State) {
	topic := fmt.Sprintf("actions/%d/status", actionID)
	if err := e.mqtt.Publish(topic, []byte(state), 1, false); err != nil && e.logger != nil {
		e.logger.Warn("action: status publish failed", "action_id", actionID, "error", err)
	}
}

func (e *Engine) auditLog(ctx context.Context, actionKind string, actionID int, details map[string]any) {
	if e.audit == nil {
		return
	}
	entry := &audit.AuditLog{
		Action:     actionKind,
		EntityType: audit.EntityAction,
		EntityID:   fmt.Sprintf("%d", actionID),
		Source:     "action-engine",
		Details:    details,
	}
	if err := e.audit.Create(ctx, entry); err != nil && e.logger != nil {
		e.logger.Warn("action: audit log failed", "action_id", actionID, "error", err)
	}
}

func (e *Engine) runDigestLoop(ctx context.Context) {
	ticker := time.NewTicker(statusDigestInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.publishDigest()
			e.touchDigest()
		}
	}
}

func (e *Engine) publishDigest() {
	type entry struct {
		ID    int    `json:"id"`
		Name  string `json:"name"`
		State State  `json:"state"`
	}
	runtimes := e.registry.Runtimes()
	digest := make([]entry, 0, len(runtimes))
	for id, rt := range runtimes {
		digest = append(digest, entry{ID: id, Name: rt.Action().Name, State: rt.State()})
	}
	e.publishJSON(topicStatusDigest, digest)
}

func (e *Engine) touchDigest() {
	e.lastDigest.Lock()
	e.digestAt = time.Now()
	e.lastDigest.Unlock()
}

// runWatchdog terminates the process (via the injected fatal callback)
// if the status digest hasn't advanced within 2x its own interval —
// the watchdog requirement below.
func (e *Engine) runWatchdog(ctx context.Context) {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.lastDigest.Lock()
			silence := time.Since(e.digestAt)
			e.lastDigest.Unlock()
			if silence > watchdogMaxSilence {
				if e.logger != nil {
					e.logger.Error("action: watchdog starvation, terminating", "silence", silence)
				}
				e.fatal("status digest starved")
				return
			}
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
