package action

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/graylogic-action-core/internal/queue"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMsg
}

type publishedMsg struct {
	topic   string
	payload string
}

func (f *fakePublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMsg{topic: topic, payload: string(payload)})
	return nil
}

func (f *fakePublisher) find(topic string) (publishedMsg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.published {
		if m.topic == topic {
			return m, true
		}
	}
	return publishedMsg{}, false
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// fakeRepository is a minimal in-memory action Repository for tests.
type fakeRepository struct {
	mu      sync.Mutex
	actions map[int]Action
}

func newFakeRepository(actions ...Action) *fakeRepository {
	m := make(map[int]Action, len(actions))
	for _, a := range actions {
		m[a.ID] = a
	}
	return &fakeRepository{actions: m}
}

func (r *fakeRepository) GetByID(_ context.Context, id int) (*Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actions[id]
	if !ok {
		return nil, ErrActionNotFound
	}
	return &a, nil
}

func (r *fakeRepository) List(ctx context.Context) ([]Action, error) { return r.ListEnabled(ctx) }

func (r *fakeRepository) ListEnabled(_ context.Context) ([]Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Action
	for _, a := range r.actions {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRepository) Create(_ context.Context, a *Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = len(r.actions) + 1
	r.actions[a.ID] = *a
	return nil
}

func (r *fakeRepository) Update(_ context.Context, a *Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[a.ID] = *a
	return nil
}

func (r *fakeRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actions, id)
	return nil
}

func waitForState(t *testing.T, rt *Runtime, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if rt.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v (timed out)", rt.State(), want)
}

func newTestEngine(t *testing.T, a Action) (*Engine, *Registry, *fakePublisher, *queue.Queue) {
	t.Helper()
	devices := newFakeDevices(relayDevice(1, "shellies", "sw1"))
	repo := newFakeRepository(a)
	registry := NewRegistry(repo, devices)
	if err := registry.RefreshCache(t.Context()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	actionsQ := queue.New("actions", 16)
	camera := queue.New("camera", 16)
	storage := queue.New("storage", 16)
	pub := &fakePublisher{}

	engine := NewEngine(registry, devices, pub, nil, actionsQ, camera, storage)
	return engine, registry, pub, actionsQ
}

func TestEngineSimpleToggleNoBranches(t *testing.T) {
	a := newToggleAction()
	engine, registry, pub, actionsQ := newTestEngine(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	actionsQ.Enqueue(queue.Message{DeviceID: 1, Topic: "shellies/sw1/input_event/1", Payload: []byte(`{"event":"S","event_cnt":10}`)})

	rt := registry.Runtime(a.ID)
	waitForState(t, rt, StateIdle, 2*time.Second)

	if _, ok := pub.find("shellies/sw1/relay/0/command"); !ok {
		t.Error("expected the THEN command to be published on the device topic")
	}
	if msg, ok := pub.find("shellies/sw1/relay/0/command"); ok && msg.payload != "on" {
		t.Errorf("command payload = %q, want %q", msg.payload, "on")
	}
}

func TestEngineNonMatchingPayloadLeavesStateUnchanged(t *testing.T) {
	a := newToggleAction()
	engine, registry, _, actionsQ := newTestEngine(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	actionsQ.Enqueue(queue.Message{DeviceID: 1, Topic: "shellies/sw1/input_event/1", Payload: []byte(`{"event":"X"}`)})

	time.Sleep(200 * time.Millisecond)
	rt := registry.Runtime(a.ID)
	if rt.State() != StateIdle {
		t.Errorf("state = %v, want idle (non-matching payload must not fire)", rt.State())
	}
}

func TestEngineBranchSuccessViaResultTopic(t *testing.T) {
	a := newToggleAction()
	a.Chain.Then.ResultTopic = "relay/0/state"
	a.Chain.Then.Timeout = 2
	a.Chain.Then.TimeoutUnit = "sec"
	a.Chain.Success = &BranchNode{
		DeviceID: 1, Topic: "relay/0/command", Command: "ack",
		Branch: BranchSuccess, Cmp: CmpEqual, Match: Match{Value: "on"},
		Timeout: 2, TimeoutUnit: "sec",
	}

	engine, registry, pub, actionsQ := newTestEngine(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	actionsQ.Enqueue(queue.Message{DeviceID: 1, Topic: "shellies/sw1/input_event/1", Payload: []byte(`{"event":"S"}`)})

	// Give the worker time to register its pending-wait before the
	// result arrives.
	time.Sleep(100 * time.Millisecond)
	actionsQ.Enqueue(queue.Message{DeviceID: 1, Topic: "shellies/sw1/relay/0/state", Payload: []byte("on")})

	rt := registry.Runtime(a.ID)
	waitForState(t, rt, StateIdle, 2*time.Second)

	if _, ok := pub.find("actions/evaluate/success/command"); !ok {
		t.Error("expected a success branch evaluate publish")
	}
	if pub.count() == 0 {
		t.Error("expected at least one publish")
	}
}

func TestEngineBranchTimeoutWithBothBranchesChoosesError(t *testing.T) {
	a := newToggleAction()
	a.Chain.Then.ResultTopic = "relay/0/state"
	a.Chain.Then.Timeout = 100
	a.Chain.Then.TimeoutUnit = "ms"
	a.Chain.Success = &BranchNode{DeviceID: 1, Topic: "relay/0/command", Command: "ack", Branch: BranchSuccess, Cmp: CmpEqual, Match: Match{Value: "on"}, Timeout: 100, TimeoutUnit: "ms"}
	a.Chain.Error = &BranchNode{DeviceID: 1, Topic: "relay/0/command", Command: "nack", Branch: BranchError, Cmp: CmpEqual, Match: Match{Value: "fail"}, Timeout: 100, TimeoutUnit: "ms"}

	engine, registry, pub, actionsQ := newTestEngine(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	actionsQ.Enqueue(queue.Message{DeviceID: 1, Topic: "shellies/sw1/input_event/1", Payload: []byte(`{"event":"S"}`)})

	rt := registry.Runtime(a.ID)
	waitForState(t, rt, StateIdle, 2*time.Second)

	if _, ok := pub.find("actions/evaluate/error/command"); !ok {
		t.Error("expected the error branch to fire on timeout when both branches are defined")
	}
}
