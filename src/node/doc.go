// Package node implements the runtime shared by every protocol: a single
// logical actor per node.
//
// Startup
//
// Before anything else, the node reads exactly one line from its inbound
// stream and expects an init message naming the node and the cluster
// membership. It answers with init_ok directly on the outbound stream, and
// only then builds the protocol state from the resulting Identity.
//
// Event loop
//
// Two producers feed one buffered channel of Events. The inbound reader
// decodes each line into an envelope and pushes it as a message event; when
// the stream ends it pushes a terminate event. The PeriodicTimer pushes a tick
// event every Protocol.Interval. A single consumer pops events in arrival
// order and hands each one to Protocol.Handle, together with the outbound
// Writer. Dispatch of one event, writes included, completes before the next
// event is popped, so protocol state needs no locks: the producers never hold
// a reference to it.
//
// Shutdown
//
// A terminate event, or a quit message, is processed like any other event,
// after everything enqueued before it. The consumer then closes the shutdown
// channel so that producers blocked on a send give up, stops the timer by
// waking it out of its sleep, and exits. Run finally joins the producers. A
// producer that fails, such as a reader hitting an I/O error, enqueues a
// terminate event before exiting so the consumer always gets to shut down
// cleanly.
package node
