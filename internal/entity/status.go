package entity

// Status is the outreach lifecycle state of a prospect.
type Status string

const (
	StatusPending               Status = "pending"
	StatusQueued                Status = "queued"
	StatusConnectionRequested   Status = "connection_requested"
	StatusConnectionRequestSent Status = "connection_request_sent"
	StatusFailed                Status = "failed"
)

// statusNone is the "from" side of the creation event.
const statusNone Status = ""

var transitions = map[Status][]Status{
	statusNone:                {StatusPending},
	StatusPending:             {StatusQueued},
	StatusQueued:              {StatusConnectionRequested, StatusPending, StatusFailed},
	StatusConnectionRequested: {StatusConnectionRequestSent, StatusFailed},
	StatusFailed:              {StatusPending},
}

// progress orders the happy path; failed is outside the sequence.
var progress = map[Status]int{
	StatusPending:               0,
	StatusQueued:                1,
	StatusConnectionRequested:   2,
	StatusConnectionRequestSent: 3,
}

func (s Status) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := progress[s]
	return ok
}

// Terminal reports whether no automated transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusConnectionRequestSent || s == StatusFailed
}

// Reached reports whether s is target or a later state on the happy path.
func (s Status) Reached(target Status) bool {
	if s == target {
		return true
	}
	a, okA := progress[s]
	b, okB := progress[target]
	return okA && okB && a >= b
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OperatorOnly reports whether the edge is reserved for explicit operator action.
func OperatorOnly(from, to Status) bool {
	return from == StatusFailed && to == StatusPending
}
