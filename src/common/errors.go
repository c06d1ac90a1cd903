package common

import "fmt"

// NodeErrType classifies the failures a node can run into.
type NodeErrType uint32

const (
	// DecodeError is a line that could not be parsed into an envelope.
	DecodeError NodeErrType = iota
	// TransportError is an I/O failure on the inbound or outbound stream.
	TransportError
	// ProtocolViolation is a message that arrived out of order, such as
	// anything other than init on the first line.
	ProtocolViolation
)

// String ...
func (t NodeErrType) String() string {
	switch t {
	case DecodeError:
		return "Decode Error"
	case TransportError:
		return "Transport Error"
	case ProtocolViolation:
		return "Protocol Violation"
	default:
		return "Unknown"
	}
}

// NodeErr ...
type NodeErr struct {
	errType NodeErrType
	op      string
	err     error
}

// NewNodeErr ...
func NewNodeErr(errType NodeErrType, op string, err error) *NodeErr {
	return &NodeErr{
		errType: errType,
		op:      op,
		err:     err,
	}
}

// Error ...
func (e *NodeErr) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s, %s", e.op, e.errType)
	}
	return fmt.Sprintf("%s, %s: %v", e.op, e.errType, e.err)
}

// Unwrap returns the underlying cause.
func (e *NodeErr) Unwrap() error {
	return e.err
}

// Cause satisfies github.com/pkg/errors.Cause.
func (e *NodeErr) Cause() error {
	return e.err
}

// Type ...
func (e *NodeErr) Type() NodeErrType {
	return e.errType
}

// IsNodeErr checks that an error, or any error it wraps, is a NodeErr whose
// type matches t.
func IsNodeErr(err error, t NodeErrType) bool {
	for err != nil {
		if nodeErr, ok := err.(*NodeErr); ok && nodeErr.errType == t {
			return true
		}
		switch e := err.(type) {
		case interface{ Unwrap() error }:
			err = e.Unwrap()
		case interface{ Cause() error }:
			err = e.Cause()
		default:
			return false
		}
	}
	return false
}
