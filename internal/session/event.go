package session

import "fmt"

// State is the lifecycle state of a Session.
type State int32

const (
	// StateStarting is the state of a session that has not finished Start.
	StateStarting State = iota
	// StateRunning accepts sends and routes inbound messages.
	StateRunning
	// StateClosing rejects sends while the transport is released.
	StateClosing
	// StateClosed is terminal; every pending call has been failed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// EventKind identifies what a listener is being told about.
type EventKind int

const (
	// EventStateChanged reports a lifecycle transition. Event.State is the new state.
	EventStateChanged EventKind = iota
	// EventDiagnostic carries one line of the peer's diagnostic stream in Event.Line.
	EventDiagnostic
	// EventParseError reports a discarded inbound unit. Event.Err is a *errors.ParseError.
	EventParseError
	// EventProtocolWarning reports a correlation anomaly. Event.Err is a *errors.ProtocolError.
	EventProtocolWarning
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventDiagnostic:
		return "diagnostic"
	case EventParseError:
		return "parse_error"
	case EventProtocolWarning:
		return "protocol_warning"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered to listeners.
type Event struct {
	Kind      EventKind
	SessionID string
	State     State
	Line      string
	Err       error
}

// Listener observes session events. Listeners run synchronously on the
// goroutine that produced the event and must not block.
type Listener func(Event)
