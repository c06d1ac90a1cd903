package broadcast

import "github.com/mosaicnetworks/gossipnode/src/message"

// Broadcast asks a node to record a message.
type Broadcast struct {
	Message int64 `json:"message"`
}

// BroadcastOk acknowledges a Broadcast.
type BroadcastOk struct {
	InReplyTo uint64 `json:"in_reply_to"`
}

// Read asks a node for every message it has seen.
type Read struct{}

// ReadOk answers a Read. Messages are sorted in ascending order.
type ReadOk struct {
	Messages  []int64 `json:"messages"`
	InReplyTo uint64  `json:"in_reply_to"`
}

// Topology assigns each node the neighbors it gossips to.
type Topology struct {
	Topology map[string][]string `json:"topology"`
}

// TopologyOk acknowledges a Topology.
type TopologyOk struct {
	InReplyTo uint64 `json:"in_reply_to"`
}

// Gossip carries the sender's entire seen set. It is never acknowledged.
type Gossip struct {
	Seen []int64 `json:"seen"`
}

// Type ...
func (Broadcast) Type() string { return "broadcast" }

// Type ...
func (BroadcastOk) Type() string { return "broadcast_ok" }

// Type ...
func (Read) Type() string { return "read" }

// Type ...
func (ReadOk) Type() string { return "read_ok" }

// Type ...
func (Topology) Type() string { return "topology" }

// Type ...
func (TopologyOk) Type() string { return "topology_ok" }

// Type ...
func (Gossip) Type() string { return "gossip" }

// Codec decodes every message of the broadcast protocol.
var Codec = message.NewCodec(
	message.Kind{
		Type:     "broadcast",
		New:      func() message.Payload { return &Broadcast{} },
		Required: []string{"message"},
	},
	message.Kind{
		Type:     "broadcast_ok",
		New:      func() message.Payload { return &BroadcastOk{} },
		Required: []string{"in_reply_to"},
	},
	message.Kind{
		Type: "read",
		New:  func() message.Payload { return &Read{} },
	},
	message.Kind{
		Type:     "read_ok",
		New:      func() message.Payload { return &ReadOk{} },
		Required: []string{"messages", "in_reply_to"},
	},
	message.Kind{
		Type:     "topology",
		New:      func() message.Payload { return &Topology{} },
		Required: []string{"topology"},
	},
	message.Kind{
		Type:     "topology_ok",
		New:      func() message.Payload { return &TopologyOk{} },
		Required: []string{"in_reply_to"},
	},
	message.Kind{
		Type:     "gossip",
		New:      func() message.Payload { return &Gossip{} },
		Required: []string{"seen"},
	},
)
