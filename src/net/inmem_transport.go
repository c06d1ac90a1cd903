package net

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/mosaicnetworks/gossipnode/src/message"
	"github.com/sirupsen/logrus"
)

// DefaultQueueSize is the capacity of an Endpoint's inbound queue.
const DefaultQueueSize = 1024

// ErrTransportClosed is returned by Connect once the transport is closed.
var ErrTransportClosed = fmt.Errorf("transport is closed")

// InmemTransport implements the Transport interface, to allow nodes to talk
// to each other in-memory without going over a network.
type InmemTransport struct {
	sync.RWMutex
	endpoints map[string]*Endpoint
	queueSize int
	closed    bool
	wg        sync.WaitGroup

	routed  uint64
	dropped uint64

	logger *logrus.Entry
}

// NewInmemTransport creates a transport whose endpoints queue at most
// queueSize inbound lines.
func NewInmemTransport(queueSize int, logger *logrus.Entry) *InmemTransport {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &InmemTransport{
		endpoints: make(map[string]*Endpoint),
		queueSize: queueSize,
		logger:    logger,
	}
}

// Connect implements the Transport interface.
func (i *InmemTransport) Connect(id string) (*Endpoint, error) {
	i.Lock()
	defer i.Unlock()

	if i.closed {
		return nil, ErrTransportClosed
	}
	if _, ok := i.endpoints[id]; ok {
		return nil, fmt.Errorf("%s is already connected", id)
	}

	e := newEndpoint(id, i.queueSize)
	i.endpoints[id] = e

	i.wg.Add(2)
	go func() {
		defer i.wg.Done()
		i.route(e)
	}()
	go func() {
		defer i.wg.Done()
		e.deliver(i.logger.WithField("endpoint", id))
	}()

	return e, nil
}

// Disconnect implements the Transport interface.
func (i *InmemTransport) Disconnect(id string) {
	i.Lock()
	e, ok := i.endpoints[id]
	delete(i.endpoints, id)
	i.Unlock()

	if ok {
		e.Close()
	}
}

// Close implements the Transport interface. It closes every endpoint and
// waits for the routing goroutines to exit.
func (i *InmemTransport) Close() error {
	i.Lock()
	i.closed = true
	endpoints := i.endpoints
	i.endpoints = make(map[string]*Endpoint)
	i.Unlock()

	for _, e := range endpoints {
		e.Close()
	}

	i.wg.Wait()

	return nil
}

// Routed returns the number of lines handed to a destination queue.
func (i *InmemTransport) Routed() uint64 {
	return atomic.LoadUint64(&i.routed)
}

// Dropped returns the number of lines that could not be routed.
func (i *InmemTransport) Dropped() uint64 {
	return atomic.LoadUint64(&i.dropped)
}

// route reads the lines written to e and forwards them by dest.
func (i *InmemTransport) route(e *Endpoint) {
	r := bufio.NewReader(e.outR)
	for {
		line, err := message.ReadLine(r)
		if err != nil {
			if err != io.EOF && err != io.ErrClosedPipe {
				i.logger.WithError(err).WithField("endpoint", e.id).Debug("Reading outbound stream")
			}
			return
		}

		var hdr struct {
			Dest string `json:"dest"`
		}
		if err := json.Unmarshal(line, &hdr); err != nil {
			i.drop(e.id, "", "unparsable line")
			continue
		}

		i.forward(e.id, hdr.Dest, line)
	}
}

func (i *InmemTransport) forward(src, dest string, line []byte) {
	i.RLock()
	target, ok := i.endpoints[dest]
	i.RUnlock()

	if !ok {
		i.drop(src, dest, "unknown destination")
		return
	}
	if !target.enqueue(line) {
		i.drop(src, dest, "queue full")
		return
	}

	atomic.AddUint64(&i.routed, 1)
}

func (i *InmemTransport) drop(src, dest, reason string) {
	atomic.AddUint64(&i.dropped, 1)
	i.logger.WithFields(logrus.Fields{
		"src":    src,
		"dest":   dest,
		"reason": reason,
	}).Debug("Dropping line")
}

// Endpoint is the pair of streams of one connected id. A node reads its
// inbound stream from it and writes its outbound stream to it.
type Endpoint struct {
	id string

	inR  *io.PipeReader
	inW  *io.PipeWriter
	outR *io.PipeReader
	outW *io.PipeWriter

	queue chan []byte

	eof       chan struct{} //closed by CloseInbound
	done      chan struct{} //closed by Close
	eofOnce   sync.Once
	closeOnce sync.Once
	delivered uint64
}

func newEndpoint(id string, queueSize int) *Endpoint {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	return &Endpoint{
		id:    id,
		inR:   inR,
		inW:   inW,
		outR:  outR,
		outW:  outW,
		queue: make(chan []byte, queueSize),
		eof:   make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// ID returns the id the endpoint was connected with.
func (e *Endpoint) ID() string {
	return e.id
}

// Read reads the lines routed to this endpoint.
func (e *Endpoint) Read(p []byte) (int, error) {
	return e.inR.Read(p)
}

// Write sends lines to the transport. Each line is routed by its dest field.
func (e *Endpoint) Write(p []byte) (int, error) {
	return e.outW.Write(p)
}

// CloseInbound ends the inbound stream once the lines already queued have
// been read. A node reading from the endpoint then sees io.EOF.
func (e *Endpoint) CloseInbound() {
	e.eofOnce.Do(func() {
		close(e.eof)
	})
}

// Close closes both streams. Pending and blocked reads and writes fail with
// io.ErrClosedPipe.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.inR.Close()
		e.outW.Close()
	})
	return nil
}

// Delivered returns the number of lines written to the inbound stream.
func (e *Endpoint) Delivered() uint64 {
	return atomic.LoadUint64(&e.delivered)
}

func (e *Endpoint) enqueue(line []byte) bool {
	select {
	case <-e.eof:
		return false
	case <-e.done:
		return false
	default:
	}

	select {
	case e.queue <- line:
		return true
	default:
		return false
	}
}

// deliver writes queued lines to the inbound stream until the endpoint is
// closed, or until its inbound stream is ended and the queue is drained.
func (e *Endpoint) deliver(logger *logrus.Entry) {
	defer e.inW.Close()

	for {
		select {
		case line := <-e.queue:
			if !e.write(line, logger) {
				return
			}
		case <-e.eof:
			for {
				select {
				case line := <-e.queue:
					if !e.write(line, logger) {
						return
					}
				default:
					return
				}
			}
		case <-e.done:
			return
		}
	}
}

func (e *Endpoint) write(line []byte, logger *logrus.Entry) bool {
	buf := make([]byte, 0, len(line)+1)
	buf = append(append(buf, line...), '\n')

	if _, err := e.inW.Write(buf); err != nil {
		logger.WithError(err).Debug("Inbound stream closed")
		return false
	}

	atomic.AddUint64(&e.delivered, 1)
	return true
}
