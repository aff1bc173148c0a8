package action

import "sync"

// branchWait is one branch's result-topic match spec, as registered
// in a PendingWait.
type branchWait struct {
	topic string
	cmp   Comparator
	match string
}

// PendingWait is the record a THEN execution registers before
// publishing its command, so a fast result arriving before the
// publish call returns is never lost. The ingestion side (the
// engine's dispatch loop, not a spawned worker — see engine.go)
// stores the observed value/topic and signals latch exactly once.
type PendingWait struct {
	mu       sync.Mutex
	latch    chan struct{}
	signaled bool

	branches map[BranchName]branchWait

	observedTopic string
	observedValue string
}

// newPendingWait builds an unsignaled wait for the given branch specs.
func newPendingWait(branches map[BranchName]branchWait) *PendingWait {
	return &PendingWait{
		latch:    make(chan struct{}),
		branches: branches,
	}
}

// Observe records a result-message observation if topic matches one of
// this wait's registered branch topics, and signals the latch. Only
// the first observation on any matching topic is kept — later ones
// after signaling are ignored, matching the "fires at most once per
// trigger" testable property.
func (p *PendingWait) Observe(topic, value string) (matched bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.signaled {
		return false
	}

	for _, b := range p.branches {
		if b.topic == topic {
			p.observedTopic = topic
			p.observedValue = value
			p.signaled = true
			close(p.latch)
			return true
		}
	}
	return false
}

// Wait blocks until Observe signals the latch or done fires, whichever
// comes first.
func (p *PendingWait) Wait(done <-chan struct{}) {
	select {
	case <-p.latch:
	case <-done:
	}
}

// Result returns the observed topic/value pair recorded by Observe, if
// any.
func (p *PendingWait) Result() (topic, value string, observed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.observedTopic, p.observedValue, p.signaled
}

// Runtime is the engine's per-Action live state: its current position
// in the idle/running/success/error state machine, the triggering
// payload stashed during THEN execution, and (while waiting on a
// branch result) its PendingWait.
type Runtime struct {
	mu sync.Mutex

	action *Action

	state       State
	ifPayload   []byte
	ifExtracted string
	pending     *PendingWait
}

// NewRuntime builds a fresh idle runtime for a.
func NewRuntime(a *Action) *Runtime {
	return &Runtime{action: a, state: StateIdle}
}

// Action returns the Action this runtime drives.
func (r *Runtime) Action() *Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.action
}

// State returns the current state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// TryStartRunning transitions idle -> running and stashes the
// triggering payload, returning false if the runtime wasn't idle (a
// concurrent IF match on the same action must not double-fire).
func (r *Runtime) TryStartRunning(payload []byte, extracted string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return false
	}
	r.state = StateRunning
	r.ifPayload = payload
	r.ifExtracted = extracted
	return true
}

// IFPayload returns the raw payload stashed by TryStartRunning.
func (r *Runtime) IFPayload() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ifPayload
}

// RegisterWait installs a PendingWait for this runtime. Must be called
// while state is running, before the THEN command is published.
func (r *Runtime) RegisterWait(w *PendingWait) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = w
}

// Wait returns the currently registered PendingWait, if any.
func (r *Runtime) Wait() *PendingWait {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Finish sets the state to state, clearing the pending wait. The
// engine calls it twice per THEN execution: first with the outcome
// state, then with StateIdle.
func (r *Runtime) Finish(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.pending = nil
}

// ResetToIdle forces idle regardless of current state; used when a
// hot-reloaded Action's in-flight wait is discarded.
func (r *Runtime) ResetToIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateIdle
	r.pending = nil
}
