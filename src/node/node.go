package node

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/gossipnode/src/common"
	"github.com/mosaicnetworks/gossipnode/src/config"
	"github.com/mosaicnetworks/gossipnode/src/message"
	"github.com/mosaicnetworks/gossipnode/src/node/state"
	"github.com/mosaicnetworks/gossipnode/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Protocol is the state machine a node runs. Handle is only ever called from
// the node's consumer loop, one event at a time.
type Protocol interface {
	// Codec decodes the variants the protocol understands.
	Codec() *message.Codec

	// Interval is the period of the protocol's timer. Protocols that return 0
	// get no timer and never see tick events.
	Interval() time.Duration

	// Handle processes one event. It may write any number of envelopes to w.
	// An error is logged and does not stop the node, unless it is a
	// TransportError from w.
	Handle(ev Event, w *message.Writer) error
}

// Factory builds a Protocol once the node knows its Identity.
type Factory func(id Identity) Protocol

// streams are the inbound and outbound streams of a bootstrapped node.
type streams struct {
	in     *bufio.Reader
	closer io.Closer
	out    io.Writer
}

// Node is the runtime of one cluster member.
type Node struct {
	lifecycle state.Manager

	conf   *config.Config
	logger *logrus.Entry

	id       Identity
	protocol Protocol
	codec    *message.Codec

	eventCh      chan Event
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	timer        *PeriodicTimer

	bootstrapped *streams

	start         time.Time
	eventCount    uint64
	tickCount     uint64
	receivedCount uint64
	sentCount     uint64
	decodeErrors  uint64
	handlerErrors uint64
}

// NewNode is a factory method that returns a Node instance. Nothing runs
// until Run is called.
func NewNode(conf *config.Config, id Identity, protocol Protocol) *Node {
	eventBuffer := conf.EventBuffer
	if eventBuffer < 0 {
		eventBuffer = 0
	}

	return &Node{
		conf: conf,
		logger: conf.Logger().WithFields(logrus.Fields{
			"this_id": id.ID,
		}),
		id:         id,
		protocol:   protocol,
		codec:      protocol.Codec(),
		eventCh:    make(chan Event, eventBuffer),
		shutdownCh: make(chan struct{}),
		start:      time.Now(),
	}
}

// Bootstrap performs the startup handshake on in and out, and returns a node
// built by factory from the announced Identity. The node is ready to Serve.
func Bootstrap(conf *config.Config, in io.Reader, out io.Writer, factory Factory) (*Node, error) {
	r := bufio.NewReader(in)

	id, err := Handshake(r, message.NewWriter(out))
	if err != nil {
		return nil, err
	}

	n := NewNode(conf, id, factory(id))

	n.logger.WithFields(logrus.Fields{
		"members": id.Members,
	}).Debug("Handshake complete")

	closer, _ := in.(io.Closer)
	n.bootstrapped = &streams{
		in:     r,
		closer: closer,
		out:    out,
	}

	return n, nil
}

// ID returns the node's own id.
func (n *Node) ID() string {
	return n.id.ID
}

// Identity returns the node's id and membership.
func (n *Node) Identity() Identity {
	return n.id
}

// GetState returns the lifecycle state of the node.
func (n *Node) GetState() state.State {
	return n.lifecycle.GetState()
}

// Serve runs the node on the streams it was bootstrapped with.
func (n *Node) Serve() error {
	if n.bootstrapped == nil {
		return fmt.Errorf("node %s was not bootstrapped", n.id.ID)
	}
	s := n.bootstrapped
	return n.run(s.in, s.closer, s.out)
}

// Run starts the inbound reader and the timer, and dispatches events until a
// terminate event has been handled. It then joins the producers. If in is an
// io.Closer, it is closed when the node stops before reaching the end of it.
func (n *Node) Run(in io.Reader, out io.Writer) error {
	closer, _ := in.(io.Closer)
	return n.run(bufio.NewReader(in), closer, out)
}

// RunAsync calls Run in a separate goroutine. The returned channel receives
// Run's result.
func (n *Node) RunAsync(in io.Reader, out io.Writer) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(in, out)
	}()
	return errCh
}

// Terminate enqueues a terminate event, as if the inbound stream had ended.
// It returns false if the node is already shutting down.
func (n *Node) Terminate() bool {
	return n.push(TerminateEvent)
}

func (n *Node) run(r *bufio.Reader, closer io.Closer, out io.Writer) error {
	if n.GetState() != state.Starting {
		return fmt.Errorf("node %s already ran", n.id.ID)
	}
	n.lifecycle.SetState(state.Running)

	n.logger.WithFields(logrus.Fields{
		"members":  len(n.id.Members),
		"interval": n.protocol.Interval(),
		"types":    n.codec.Types(),
	}).Debug("Run")

	w := message.NewWriter(out, n.onSent)

	readerDone := make(chan struct{})
	n.lifecycle.GoFunc(func() {
		defer close(readerDone)
		n.readInbound(r)
	})

	if interval := n.protocol.Interval(); interval > 0 {
		n.timer = NewPeriodicTimer(n.pushTick, interval, n.logger.WithField("component", "timer"))
	}

	err := n.consume(w)

	n.join(closer, readerDone)
	n.lifecycle.SetState(state.Shutdown)

	n.logger.WithFields(logrus.Fields{
		"events": atomic.LoadUint64(&n.eventCount),
		"sent":   atomic.LoadUint64(&n.sentCount),
	}).Debug("Stopped")

	return err
}

// readInbound is the inbound producer. It never touches protocol state.
func (n *Node) readInbound(r *bufio.Reader) {
	for {
		line, err := message.ReadLine(r)
		if err == io.EOF {
			n.logger.Debug("Inbound stream ended")
			n.push(TerminateEvent)
			return
		}
		if err != nil {
			n.logger.WithError(common.NewNodeErr(common.TransportError, "read", err)).Error("Reading inbound stream")
			n.push(TerminateEvent)
			return
		}

		e, err := n.codec.Decode(line)
		if err != nil {
			atomic.AddUint64(&n.decodeErrors, 1)
			telemetry.DecodeErrors.WithLabelValues(n.id.ID).Inc()
			n.logger.WithError(err).WithField("line", string(line)).Warn("Dropping undecodable line")
			continue
		}

		atomic.AddUint64(&n.receivedCount, 1)
		telemetry.MessagesReceived.WithLabelValues(n.id.ID, e.Type()).Inc()

		if !n.push(NewMessageEvent(e)) {
			return
		}
	}
}

// pushTick is the timer's task. It never touches protocol state.
func (n *Node) pushTick() error {
	if !n.push(TickEvent) {
		return ErrTimerStopped
	}
	return nil
}

// push enqueues an event. It gives up, returning false, once the consumer is
// shutting down.
func (n *Node) push(ev Event) bool {
	select {
	case <-n.shutdownCh:
		return false
	default:
	}

	select {
	case n.eventCh <- ev:
		return true
	case <-n.shutdownCh:
		return false
	}
}

// consume is the single consumer. It is the only place Protocol.Handle is
// called from.
func (n *Node) consume(w *message.Writer) error {
	for {
		ev := <-n.eventCh

		if ev.Kind == EventMessage {
			if _, ok := ev.Envelope.Body.Payload.(*message.Quit); ok {
				n.logger.WithField("from", ev.Envelope.Src).Debug("Quit requested")
				ev = TerminateEvent
			}
		}

		err := n.dispatch(ev, w)

		if ev.Kind == EventTerminate {
			if err != nil {
				n.logger.WithError(err).Warn("Handling terminate")
			}
			n.shutdown()
			if common.IsNodeErr(err, common.TransportError) {
				return err
			}
			return nil
		}

		if err != nil {
			if common.IsNodeErr(err, common.TransportError) {
				n.logger.WithError(err).Error("Outbound stream failed, shutting down")
				n.shutdown()
				return err
			}
			n.logger.WithError(err).WithFields(logrus.Fields{
				"event": ev.Kind.String(),
				"type":  ev.Envelope.Type(),
				"from":  ev.Envelope.Src,
			}).Warn("Handling event")
		}
	}
}

func (n *Node) dispatch(ev Event, w *message.Writer) error {
	kind := ev.Kind.String()

	atomic.AddUint64(&n.eventCount, 1)
	if ev.Kind == EventTick {
		atomic.AddUint64(&n.tickCount, 1)
	}
	telemetry.EventsTotal.WithLabelValues(n.id.ID, kind).Inc()

	start := time.Now()
	err := n.protocol.Handle(ev, w)
	telemetry.DispatchDuration.WithLabelValues(n.id.ID, kind).Observe(time.Since(start).Seconds())

	if err != nil {
		atomic.AddUint64(&n.handlerErrors, 1)
		telemetry.HandlerErrors.WithLabelValues(n.id.ID).Inc()
	}

	return err
}

// shutdown releases the producers and stops the timer. It is called from the
// consumer only.
func (n *Node) shutdown() {
	n.lifecycle.SetState(state.ShuttingDown)

	n.shutdownOnce.Do(func() {
		close(n.shutdownCh)
	})

	if n.timer != nil {
		n.timer.Stop()
	}
}

// join waits for the producers. The timer was already joined by shutdown. The
// reader is unblocked by closing the inbound stream when possible, and
// abandoned after ShutdownTimeout otherwise.
func (n *Node) join(closer io.Closer, readerDone <-chan struct{}) {
	select {
	case <-readerDone:
	default:
		if closer != nil {
			if err := closer.Close(); err != nil {
				n.logger.WithError(err).Debug("Closing inbound stream")
			}
		}
	}

	done := make(chan struct{})
	go func() {
		n.lifecycle.WaitRoutines()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(n.conf.ShutdownTimeout):
		n.logger.Warn("Inbound reader is still blocked, not waiting for it")
	}
}

func (n *Node) onSent(e message.Envelope) {
	atomic.AddUint64(&n.sentCount, 1)
	telemetry.MessagesSent.WithLabelValues(n.id.ID, e.Type()).Inc()
}

// GetStats returns runtime counters. It only reads atomics and never touches
// protocol state, so it is safe to call from any goroutine.
func (n *Node) GetStats() map[string]string {
	u64 := func(v *uint64) string {
		return strconv.FormatUint(atomic.LoadUint64(v), 10)
	}

	return map[string]string{
		"id":                n.id.ID,
		"members":           strconv.Itoa(len(n.id.Members)),
		"state":             n.GetState().String(),
		"events":            u64(&n.eventCount),
		"ticks":             u64(&n.tickCount),
		"messages_received": u64(&n.receivedCount),
		"messages_sent":     u64(&n.sentCount),
		"decode_errors":     u64(&n.decodeErrors),
		"handler_errors":    u64(&n.handlerErrors),
		"time_elapsed":      strconv.FormatFloat(time.Since(n.start).Seconds(), 'f', 2, 64),
	}
}
