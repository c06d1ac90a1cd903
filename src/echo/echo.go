// Package echo implements the two stateless request/response protocols:
// echo, and unique id generation. Neither uses a timer.
package echo

import (
	"fmt"
	"time"

	"github.com/mosaicnetworks/gossipnode/src/message"
	"github.com/mosaicnetworks/gossipnode/src/node"
)

// EchoNode sends every echo back to its sender.
type EchoNode struct{}

// NewEchoNode ...
func NewEchoNode(id node.Identity) node.Protocol {
	return &EchoNode{}
}

// Codec implements node.Protocol.
func (n *EchoNode) Codec() *message.Codec {
	return EchoCodec
}

// Interval implements node.Protocol.
func (n *EchoNode) Interval() time.Duration {
	return 0
}

// Handle implements node.Protocol.
func (n *EchoNode) Handle(ev node.Event, w *message.Writer) error {
	if ev.Kind != node.EventMessage {
		return nil
	}

	req := ev.Envelope
	switch p := req.Body.Payload.(type) {
	case *Echo:
		return w.Reply(req, &EchoOk{
			Echo:      p.Echo,
			InReplyTo: message.InReplyTo(req.Body.MsgID),
		})
	case *EchoOk:
		return w.Reply(req, p)
	default:
		return fmt.Errorf("unexpected %s message", req.Type())
	}
}

// UniqueIDsNode hands out ids of the form <node id>_<n>, with n counting up
// from 1. Ids are unique across the cluster because node ids are.
type UniqueIDsNode struct {
	id        string
	generated uint64
}

// NewUniqueIDsNode ...
func NewUniqueIDsNode(id node.Identity) node.Protocol {
	return &UniqueIDsNode{id: id.ID}
}

// Codec implements node.Protocol.
func (n *UniqueIDsNode) Codec() *message.Codec {
	return UniqueIDsCodec
}

// Interval implements node.Protocol.
func (n *UniqueIDsNode) Interval() time.Duration {
	return 0
}

// Handle implements node.Protocol.
func (n *UniqueIDsNode) Handle(ev node.Event, w *message.Writer) error {
	if ev.Kind != node.EventMessage {
		return nil
	}

	req := ev.Envelope
	switch p := req.Body.Payload.(type) {
	case *Generate:
		n.generated++
		return w.Reply(req, &GenerateOk{
			ID:        fmt.Sprintf("%s_%d", n.id, n.generated),
			InReplyTo: message.InReplyTo(req.Body.MsgID),
		})
	case *GenerateOk:
		return w.Reply(req, p)
	default:
		return fmt.Errorf("unexpected %s message", req.Type())
	}
}
