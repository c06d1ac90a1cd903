// Package counter implements a replicated grow-only counter. Each node only
// increments its own value and periodically pushes it to every other member.
// Reads sum the local value with the last value reported by each peer.
package counter

import (
	"fmt"
	"math"
	"time"

	"github.com/mosaicnetworks/gossipnode/src/config"
	"github.com/mosaicnetworks/gossipnode/src/message"
	"github.com/mosaicnetworks/gossipnode/src/node"
	"github.com/mosaicnetworks/gossipnode/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Node is the counter state of one cluster member. It is not safe for
// concurrent use.
type Node struct {
	id       node.Identity
	interval time.Duration
	logger   *logrus.Entry

	local uint64
	peers map[string]uint64
}

// NewNode creates the counter state of the node identified by id. Every other
// member starts with a known value of 0; no other sender is ever tracked.
func NewNode(id node.Identity, interval time.Duration, logger *logrus.Entry) *Node {
	peers := make(map[string]uint64)
	for _, p := range id.Peers() {
		peers[p] = 0
	}

	return &Node{
		id:       id,
		interval: interval,
		logger:   logger,
		peers:    peers,
	}
}

// NewFactory returns a node.Factory building counter nodes configured by
// conf.
func NewFactory(conf *config.Config) node.Factory {
	return func(id node.Identity) node.Protocol {
		return NewNode(id, conf.CounterInterval, conf.Logger().WithFields(logrus.Fields{
			"this_id":  id.ID,
			"protocol": config.ProtocolCounter,
		}))
	}
}

// Codec implements node.Protocol.
func (n *Node) Codec() *message.Codec {
	return Codec
}

// Interval implements node.Protocol.
func (n *Node) Interval() time.Duration {
	return n.interval
}

// Handle implements node.Protocol.
func (n *Node) Handle(ev node.Event, w *message.Writer) error {
	switch ev.Kind {
	case node.EventTick:
		return n.pushCurrent(w)
	case node.EventTerminate:
		n.logger.WithField("value", n.Value()).Debug("Terminate")
		return nil
	}

	req := ev.Envelope

	switch p := req.Body.Payload.(type) {
	case *Add:
		n.local = saturatingAdd(n.local, p.Delta)
		n.updateGauge()
		return w.Reply(req, &AddOk{InReplyTo: message.InReplyTo(req.Body.MsgID)})
	case *Read:
		return w.Reply(req, &ReadOk{
			Value:     n.Value(),
			InReplyTo: message.InReplyTo(req.Body.MsgID),
		})
	case *Current:
		if _, ok := n.peers[req.Src]; !ok {
			n.logger.WithField("from", req.Src).Debug("Ignoring current from unknown node")
			return nil
		}
		n.peers[req.Src] = p.Value
		n.updateGauge()
		return nil
	case *AddOk, *ReadOk:
		return nil
	default:
		return fmt.Errorf("unexpected %s message", req.Type())
	}
}

// pushCurrent sends the local value to every other member.
func (n *Node) pushCurrent(w *message.Writer) error {
	for _, p := range n.id.Peers() {
		err := w.Send(message.NewEnvelope(n.id.ID, p, nil, &Current{Value: n.local}))
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) updateGauge() {
	telemetry.CounterValue.WithLabelValues(n.id.ID).Set(float64(n.Value()))
}

// saturatingAdd returns a+b, or math.MaxUint64 if the sum overflows.
func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// Local returns the node's own counter value.
func (n *Node) Local() uint64 {
	return n.local
}

// Value returns the local value plus the last value known for every peer. The
// sum stops at math.MaxUint64.
func (n *Node) Value() uint64 {
	total := n.local
	for _, v := range n.peers {
		total = saturatingAdd(total, v)
	}
	return total
}

// Known returns the last value reported by peer, and whether peer is tracked
// at all.
func (n *Node) Known(peer string) (uint64, bool) {
	v, ok := n.peers[peer]
	return v, ok
}
