package message

// Init is the first message a node receives. It names the node and the full
// membership of the cluster.
type Init struct {
	NodeID  string   `json:"node_id"`
	NodeIDs []string `json:"node_ids"`
}

// InitOk acknowledges an Init.
type InitOk struct {
	InReplyTo uint64 `json:"in_reply_to"`
}

// Quit asks a node to shut down as if its inbound stream had ended.
type Quit struct{}

// Type ...
func (Init) Type() string { return "init" }

// Type ...
func (InitOk) Type() string { return "init_ok" }

// Type ...
func (Quit) Type() string { return "quit" }

var (
	// InitKind ...
	InitKind = Kind{
		Type:     "init",
		New:      func() Payload { return &Init{} },
		Required: []string{"node_id", "node_ids"},
	}
	// InitOkKind ...
	InitOkKind = Kind{
		Type:     "init_ok",
		New:      func() Payload { return &InitOk{} },
		Required: []string{"in_reply_to"},
	}
	// QuitKind is recognised by every Codec.
	QuitKind = Kind{
		Type: "quit",
		New:  func() Payload { return &Quit{} },
	}
)

// HandshakeCodec decodes the messages that may appear on the first line of
// the inbound stream.
var HandshakeCodec = NewCodec(InitKind, InitOkKind)
