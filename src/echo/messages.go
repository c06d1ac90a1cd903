package echo

import "github.com/mosaicnetworks/gossipnode/src/message"

// Echo asks a node to send a string back.
type Echo struct {
	Echo string `json:"echo"`
}

// EchoOk answers an Echo.
type EchoOk struct {
	Echo      string `json:"echo"`
	InReplyTo uint64 `json:"in_reply_to"`
}

// Generate asks a node for a cluster-wide unique id.
type Generate struct{}

// GenerateOk answers a Generate.
type GenerateOk struct {
	ID        string `json:"id"`
	InReplyTo uint64 `json:"in_reply_to"`
}

// Type ...
func (Echo) Type() string { return "echo" }

// Type ...
func (EchoOk) Type() string { return "echo_ok" }

// Type ...
func (Generate) Type() string { return "generate" }

// Type ...
func (GenerateOk) Type() string { return "generate_ok" }

// EchoCodec decodes the messages of the echo protocol.
var EchoCodec = message.NewCodec(
	message.Kind{
		Type:     "echo",
		New:      func() message.Payload { return &Echo{} },
		Required: []string{"echo"},
	},
	message.Kind{
		Type:     "echo_ok",
		New:      func() message.Payload { return &EchoOk{} },
		Required: []string{"echo", "in_reply_to"},
	},
)

// UniqueIDsCodec decodes the messages of the unique-ids protocol.
var UniqueIDsCodec = message.NewCodec(
	message.Kind{
		Type: "generate",
		New:  func() message.Payload { return &Generate{} },
	},
	message.Kind{
		Type:     "generate_ok",
		New:      func() message.Payload { return &GenerateOk{} },
		Required: []string{"id", "in_reply_to"},
	},
)
