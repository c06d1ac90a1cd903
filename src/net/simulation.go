package net

import (
	"bufio"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/gossipnode/src/config"
	"github.com/mosaicnetworks/gossipnode/src/message"
	"github.com/mosaicnetworks/gossipnode/src/node"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// HarnessID is the id the simulation itself uses to talk to the nodes. The
// init handshake and every request sent with Send come from it, and the
// replies to it are discarded.
const HarnessID = "harness"

// Simulation runs one node runtime per member of a cluster on an
// InmemTransport.
type Simulation struct {
	conf      *config.Config
	logger    *logrus.Entry
	transport *InmemTransport
	harness   *Endpoint

	ids       []string
	nodes     map[string]*node.Node
	endpoints map[string]*Endpoint
	results   map[string]chan error

	msgID   uint64
	replies uint64

	harnessDone chan struct{}
	stopOnce    sync.Once
	stopErr     error
}

// NewSimulation prepares a simulation of the cluster made of ids. Nothing runs
// until Start is called.
func NewSimulation(conf *config.Config, ids []string) *Simulation {
	logger := conf.Logger().WithField("component", "simulation")

	return &Simulation{
		conf:        conf,
		logger:      logger,
		transport:   NewInmemTransport(conf.EventBuffer, logger),
		ids:         ids,
		nodes:       make(map[string]*node.Node),
		endpoints:   make(map[string]*Endpoint),
		results:     make(map[string]chan error),
		harnessDone: make(chan struct{}),
	}
}

// Transport returns the transport the nodes are connected to. Clients can
// Connect to it to exchange messages with the nodes.
func (s *Simulation) Transport() *InmemTransport {
	return s.transport
}

// Start connects every member, performs its init handshake, and runs it with
// a protocol built by factory.
func (s *Simulation) Start(factory node.Factory) error {
	harness, err := s.transport.Connect(HarnessID)
	if err != nil {
		return err
	}
	s.harness = harness
	go s.drainHarness()

	for _, id := range s.ids {
		ep, err := s.transport.Connect(id)
		if err != nil {
			return errors.Wrapf(err, "connecting %s", id)
		}
		s.endpoints[id] = ep

		err = s.Send(id, &message.Init{
			NodeID:  id,
			NodeIDs: s.ids,
		})
		if err != nil {
			return errors.Wrapf(err, "sending init to %s", id)
		}

		n, err := node.Bootstrap(s.conf, ep, ep, factory)
		if err != nil {
			return errors.Wrapf(err, "bootstrapping %s", id)
		}
		s.nodes[id] = n

		result := make(chan error, 1)
		s.results[id] = result
		go func() {
			result <- n.Serve()
		}()
	}

	s.logger.WithField("nodes", s.ids).Debug("Simulation started")

	return nil
}

// Send sends a request from the harness to the node dest, with a fresh
// msg_id.
func (s *Simulation) Send(dest string, p message.Payload) error {
	if s.harness == nil {
		return fmt.Errorf("simulation is not started")
	}

	line, err := message.Encode(message.NewEnvelope(
		HarnessID,
		dest,
		message.ID(atomic.AddUint64(&s.msgID, 1)),
		p,
	))
	if err != nil {
		return err
	}

	_, err = s.harness.Write(line)
	return err
}

// SendAll sends the payload built by fn to every member.
func (s *Simulation) SendAll(fn func(id string) message.Payload) error {
	for _, id := range s.ids {
		if err := s.Send(id, fn(id)); err != nil {
			return err
		}
	}
	return nil
}

// Node returns the runtime of member id, or nil.
func (s *Simulation) Node(id string) *node.Node {
	return s.nodes[id]
}

// Replies returns the number of lines received by the harness.
func (s *Simulation) Replies() uint64 {
	return atomic.LoadUint64(&s.replies)
}

// GetStats returns the stats of every node, prefixed by its id, together with
// the transport counters.
func (s *Simulation) GetStats() map[string]string {
	stats := map[string]string{
		"nodes":           strconv.Itoa(len(s.ids)),
		"lines_routed":    strconv.FormatUint(s.transport.Routed(), 10),
		"lines_dropped":   strconv.FormatUint(s.transport.Dropped(), 10),
		"harness_replies": strconv.FormatUint(s.Replies(), 10),
	}

	for id, n := range s.nodes {
		for k, v := range n.GetStats() {
			stats[id+"."+k] = v
		}
	}

	return stats
}

// Stop ends the inbound stream of every node, waits for the nodes to shut
// down, and closes the transport. It returns the first error a node stopped
// with.
func (s *Simulation) Stop() error {
	s.stopOnce.Do(func() {
		for _, ep := range s.endpoints {
			ep.CloseInbound()
		}

		for _, id := range s.ids {
			result, ok := s.results[id]
			if !ok {
				continue
			}
			select {
			case err := <-result:
				if err != nil && s.stopErr == nil {
					s.stopErr = errors.Wrapf(err, "node %s", id)
				}
				// Lines still addressed to a stopped node are dropped.
				s.transport.Disconnect(id)
			case <-time.After(s.conf.ShutdownTimeout + time.Second):
				s.logger.WithField("node", id).Warn("Node did not stop")
			}
		}

		s.transport.Close()

		if s.harness != nil {
			<-s.harnessDone
		}

		s.logger.WithFields(logrus.Fields{
			"routed":  s.transport.Routed(),
			"dropped": s.transport.Dropped(),
		}).Debug("Simulation stopped")
	})

	return s.stopErr
}

func (s *Simulation) drainHarness() {
	defer close(s.harnessDone)

	r := bufio.NewReader(s.harness)
	for {
		line, err := message.ReadLine(r)
		if err != nil {
			return
		}
		atomic.AddUint64(&s.replies, 1)
		s.logger.WithField("line", string(line)).Debug("Harness received")
	}
}
