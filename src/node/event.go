package node

import "github.com/mosaicnetworks/gossipnode/src/message"

// EventKind distinguishes the three kinds of events a protocol handles.
type EventKind uint8

const (
	// EventMessage carries an envelope decoded from the inbound stream.
	EventMessage EventKind = iota
	// EventTick is pushed by the periodic timer.
	EventTick
	// EventTerminate asks the node to shut down.
	EventTerminate
)

// String ...
func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventTick:
		return "tick"
	case EventTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Event is one item of the node's ordered event stream.
type Event struct {
	Kind     EventKind
	Envelope message.Envelope
}

// NewMessageEvent wraps an inbound envelope.
func NewMessageEvent(e message.Envelope) Event {
	return Event{Kind: EventMessage, Envelope: e}
}

// TickEvent ...
var TickEvent = Event{Kind: EventTick}

// TerminateEvent ...
var TerminateEvent = Event{Kind: EventTerminate}

// Identity is the node's own id and the cluster membership, as announced by
// the init message. It does not change for the lifetime of the node.
type Identity struct {
	ID      string
	Members []string
}

// Peers returns the members other than the node itself, in membership order.
func (id Identity) Peers() []string {
	res := make([]string, 0, len(id.Members))
	for _, m := range id.Members {
		if m != id.ID {
			res = append(res, m)
		}
	}
	return res
}

// IsMember reports whether nodeID belongs to the membership.
func (id Identity) IsMember(nodeID string) bool {
	for _, m := range id.Members {
		if m == nodeID {
			return true
		}
	}
	return false
}
