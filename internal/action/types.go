package action

import "time"

// State is an Action's position in its per-Action state machine.
type State string

// State values.
const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Comparator values an IF or branch node may use to compare an
// observed value against its configured match value.
type Comparator string

// Comparator values.
const (
	CmpEqual        Comparator = "=="
	CmpNotEqual     Comparator = "!="
	CmpLessThan     Comparator = "<"
	CmpLessEqual    Comparator = "<="
	CmpGreaterThan  Comparator = ">"
	CmpGreaterEqual Comparator = ">="
)

// validComparators is the closed set of comparators allowed in a chain.
var validComparators = map[Comparator]bool{
	CmpEqual: true, CmpNotEqual: true,
	CmpLessThan: true, CmpLessEqual: true,
	CmpGreaterThan: true, CmpGreaterEqual: true,
}

// Match is the literal value an IF or branch node compares against.
type Match struct {
	Value string `json:"value"`
}

// IfNode is the single trigger condition a chain starts from. Source
// must be "io" — the only trigger source this engine implements.
type IfNode struct {
	DeviceID int        `json:"device_id"`
	Source   string     `json:"source"`
	Topic    string     `json:"topic"`
	Cmp      Comparator `json:"cmp"`
	Match    Match      `json:"match"`

	PollInterval     int    `json:"poll_interval,omitempty"`
	PollIntervalUnit string `json:"poll_interval_unit,omitempty"`
	PollTopic        string `json:"poll_topic,omitempty"`
	PollPayload      string `json:"poll_payload,omitempty"`
}

// ThenNode is the command dispatched once the IF condition matches. A
// Command of "$IF" means "forward the triggering IF payload verbatim".
type ThenNode struct {
	DeviceID      int    `json:"device_id"`
	Topic         string `json:"topic"`
	Command       string `json:"command"`
	IgnoreInput   bool   `json:"ignore_input"`
	ResultTopic   string `json:"result_topic,omitempty"`
	ResultPayload string `json:"result_payload,omitempty"`
	Timeout       int    `json:"timeout"`
	TimeoutUnit   string `json:"timeout_unit"`
}

// ForwardIF is the literal command value meaning "use the triggering
// IF payload as the command".
const ForwardIF = "$IF"

// BranchName identifies which branch of a chain fired.
type BranchName string

// BranchName values.
const (
	BranchSuccess BranchName = "success"
	BranchError   BranchName = "error"
)

// BranchNode is a success or error branch: same shape as ThenNode plus
// the match spec the branch result is evaluated against.
type BranchNode struct {
	DeviceID      int        `json:"device_id"`
	Topic         string     `json:"topic"`
	Command       string     `json:"command"`
	IgnoreInput   bool       `json:"ignore_input"`
	ResultTopic   string     `json:"result_topic,omitempty"`
	ResultPayload string     `json:"result_payload,omitempty"`
	Branch        BranchName `json:"branch"`
	Cmp           Comparator `json:"cmp"`
	Match         Match      `json:"match"`
	Timeout       int        `json:"timeout"`
	TimeoutUnit   string     `json:"timeout_unit"`
}

// Chain is an Action's ordered rule: one IF, one THEN, and optional
// success/error branches.
type Chain struct {
	If      IfNode      `json:"if"`
	Then    ThenNode    `json:"then"`
	Success *BranchNode `json:"success,omitempty"`
	Error   *BranchNode `json:"error,omitempty"`
}

// Action is a persistent automation rule.
type Action struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	Chain       Chain     `json:"chain"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeepCopy returns an independent copy of a, safe to hand to a reader
// that must not observe later mutation of the registry's cache.
func (a *Action) DeepCopy() *Action {
	if a == nil {
		return nil
	}
	cpy := *a
	if a.Chain.Success != nil {
		s := *a.Chain.Success
		cpy.Chain.Success = &s
	}
	if a.Chain.Error != nil {
		e := *a.Chain.Error
		cpy.Chain.Error = &e
	}
	return &cpy
}
