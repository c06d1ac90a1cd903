package message

import (
	"bufio"
	"bytes"
	"io"

	"github.com/mosaicnetworks/gossipnode/src/common"
)

// Writer writes envelopes to the outbound stream, one per line. It is not
// safe for concurrent use; a node only ever writes from its consumer loop.
type Writer struct {
	w         io.Writer
	observers []func(Envelope)
}

// NewWriter returns a Writer on w. Each observer is called after an envelope
// has been written successfully.
func NewWriter(w io.Writer, observers ...func(Envelope)) *Writer {
	return &Writer{
		w:         w,
		observers: observers,
	}
}

// Send encodes e and writes it as one line. Write failures are returned as a
// TransportError.
func (w *Writer) Send(e Envelope) error {
	line, err := Encode(e)
	if err != nil {
		return err
	}

	if _, err := w.w.Write(line); err != nil {
		return common.NewNodeErr(common.TransportError, "write", err)
	}

	for _, o := range w.observers {
		o(e)
	}

	return nil
}

// Reply sends payload back to the sender of req. The reply reuses the
// request's msg_id.
func (w *Writer) Reply(req Envelope, payload Payload) error {
	return w.Send(NewEnvelope(req.Dest, req.Src, req.Body.MsgID, payload))
}

// ReadLine returns the next non-blank line from r, without its terminator. A
// final line without a trailing newline is still returned; io.EOF is only
// returned once nothing is left.
func ReadLine(r *bufio.Reader) ([]byte, error) {
	for {
		line, err := r.ReadBytes('\n')
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			return trimmed, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
