package node

import (
	"bufio"
	"fmt"
	"io"

	"github.com/mosaicnetworks/gossipnode/src/common"
	"github.com/mosaicnetworks/gossipnode/src/message"
)

// Handshake reads the first line of the inbound stream, which must be an init
// message, answers it with init_ok on w, and returns the announced Identity.
//
// It must run before any producer is started: it is the only code that reads
// the inbound stream or writes the outbound stream outside of the node's
// consumer loop. Any other message on the first line is a ProtocolViolation.
func Handshake(r *bufio.Reader, w *message.Writer) (Identity, error) {
	line, err := message.ReadLine(r)
	if err == io.EOF {
		return Identity{}, common.NewNodeErr(common.TransportError, "handshake", io.ErrUnexpectedEOF)
	}
	if err != nil {
		return Identity{}, common.NewNodeErr(common.TransportError, "handshake", err)
	}

	typ, err := message.PeekType(line)
	if err != nil {
		return Identity{}, err
	}

	if typ != message.InitKind.Type {
		return Identity{}, common.NewNodeErr(common.ProtocolViolation, "handshake",
			fmt.Errorf("first message should be init, not %s", typ))
	}

	req, err := message.HandshakeCodec.Decode(line)
	if err != nil {
		return Identity{}, err
	}

	initMsg := req.Body.Payload.(*message.Init)
	if initMsg.NodeID == "" {
		return Identity{}, common.NewNodeErr(common.ProtocolViolation, "handshake",
			fmt.Errorf("init does not name this node"))
	}

	resp := message.NewEnvelope(req.Dest, req.Src, nil, &message.InitOk{
		InReplyTo: message.InReplyTo(req.Body.MsgID),
	})
	if err := w.Send(resp); err != nil {
		return Identity{}, err
	}

	members := make([]string, len(initMsg.NodeIDs))
	copy(members, initMsg.NodeIDs)

	return Identity{
		ID:      initMsg.NodeID,
		Members: members,
	}, nil
}
