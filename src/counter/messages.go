package counter

import "github.com/mosaicnetworks/gossipnode/src/message"

// Add increments the receiving node's own counter.
type Add struct {
	Delta uint64 `json:"delta"`
}

// AddOk acknowledges an Add.
type AddOk struct {
	InReplyTo uint64 `json:"in_reply_to"`
}

// Read asks a node for the cluster-wide total it knows of.
type Read struct{}

// ReadOk answers a Read.
type ReadOk struct {
	Value     uint64 `json:"value"`
	InReplyTo uint64 `json:"in_reply_to"`
}

// Current carries the sender's own counter value.
type Current struct {
	Value uint64 `json:"value"`
}

// Type ...
func (Add) Type() string { return "add" }

// Type ...
func (AddOk) Type() string { return "add_ok" }

// Type ...
func (Read) Type() string { return "read" }

// Type ...
func (ReadOk) Type() string { return "read_ok" }

// Type ...
func (Current) Type() string { return "current" }

// Codec decodes every message of the counter protocol.
var Codec = message.NewCodec(
	message.Kind{
		Type:     "add",
		New:      func() message.Payload { return &Add{} },
		Required: []string{"delta"},
	},
	message.Kind{
		Type:     "add_ok",
		New:      func() message.Payload { return &AddOk{} },
		Required: []string{"in_reply_to"},
	},
	message.Kind{
		Type: "read",
		New:  func() message.Payload { return &Read{} },
	},
	message.Kind{
		Type:     "read_ok",
		New:      func() message.Payload { return &ReadOk{} },
		Required: []string{"value", "in_reply_to"},
	},
	message.Kind{
		Type:     "current",
		New:      func() message.Payload { return &Current{} },
		Required: []string{"value"},
	},
)
