// Package broadcast implements set-union gossip. Every node records the
// messages broadcast to it and periodically sends its entire seen set to the
// neighbors assigned by the last topology message that named it. Merging is a
// set union, so duplicated or reordered gossip is harmless.
package broadcast

import (
	"fmt"
	"sort"
	"time"

	"github.com/mosaicnetworks/gossipnode/src/config"
	"github.com/mosaicnetworks/gossipnode/src/message"
	"github.com/mosaicnetworks/gossipnode/src/node"
	"github.com/mosaicnetworks/gossipnode/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Node is the broadcast protocol state of one cluster member. It is not safe
// for concurrent use; the runtime only calls it from its consumer loop.
type Node struct {
	id       node.Identity
	interval time.Duration
	logger   *logrus.Entry

	seen      map[int64]struct{}
	neighbors []string
}

// NewNode creates the broadcast state of the node identified by id. Gossip is
// sent every interval once a topology has been received.
func NewNode(id node.Identity, interval time.Duration, logger *logrus.Entry) *Node {
	return &Node{
		id:       id,
		interval: interval,
		logger:   logger,
		seen:     make(map[int64]struct{}),
	}
}

// NewFactory returns a node.Factory building broadcast nodes configured by
// conf.
func NewFactory(conf *config.Config) node.Factory {
	return func(id node.Identity) node.Protocol {
		return NewNode(id, conf.GossipInterval, conf.Logger().WithFields(logrus.Fields{
			"this_id":  id.ID,
			"protocol": config.ProtocolBroadcast,
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
		return n.gossip(w)
	case node.EventTerminate:
		n.logger.WithField("seen", len(n.seen)).Debug("Terminate")
		return nil
	}

	req := ev.Envelope
	inReplyTo := message.InReplyTo(req.Body.MsgID)

	switch p := req.Body.Payload.(type) {
	case *Broadcast:
		n.add(p.Message)
		return w.Reply(req, &BroadcastOk{InReplyTo: inReplyTo})
	case *Read:
		return w.Reply(req, &ReadOk{Messages: n.Seen(), InReplyTo: inReplyTo})
	case *Topology:
		if neighbors, ok := p.Topology[n.id.ID]; ok {
			n.neighbors = append([]string{}, neighbors...)
			n.logger.WithField("neighbors", n.neighbors).Debug("New topology")
		}
		return w.Reply(req, &TopologyOk{InReplyTo: inReplyTo})
	case *Gossip:
		for _, m := range p.Seen {
			n.add(m)
		}
		return nil
	case *BroadcastOk, *TopologyOk, *ReadOk:
		// Stray acknowledgements go back to their sender as they are.
		return w.Reply(req, p)
	default:
		return fmt.Errorf("unexpected %s message", req.Type())
	}
}

// gossip sends the entire seen set to every neighbor.
func (n *Node) gossip(w *message.Writer) error {
	if len(n.neighbors) == 0 {
		return nil
	}

	seen := n.Seen()
	for _, neighbor := range n.neighbors {
		err := w.Send(message.NewEnvelope(n.id.ID, neighbor, nil, &Gossip{Seen: seen}))
		if err != nil {
			return err
		}
	}

	return nil
}

func (n *Node) add(m int64) {
	if _, ok := n.seen[m]; ok {
		return
	}
	n.seen[m] = struct{}{}
	telemetry.SeenMessages.WithLabelValues(n.id.ID).Set(float64(len(n.seen)))
}

// Seen returns the sorted list of messages seen so far.
func (n *Node) Seen() []int64 {
	res := make([]int64, 0, len(n.seen))
	for m := range n.seen {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Neighbors returns the nodes gossiped to on every tick.
func (n *Node) Neighbors() []string {
	return n.neighbors
}
