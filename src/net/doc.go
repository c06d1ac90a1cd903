// Package net connects several node runtimes inside one process.
//
// A node only knows two byte streams: the lines it reads and the lines it
// writes. The InmemTransport gives every connected id an Endpoint that plays
// both roles. Lines written to an Endpoint are routed by their dest field to
// the inbound stream of the Endpoint with that id. Nothing else about the
// envelope is inspected.
//
// Delivery is asynchronous. Every Endpoint has a bounded inbound queue; when
// the queue is full, or when dest is not connected, the line is dropped and
// counted, as a lossy network would. The gossip and counter protocols tolerate
// such losses because they periodically resend their full state.
//
// A Simulation uses the transport to run a whole cluster: it performs the
// init handshake with every member, lets callers inject client requests, and
// shuts every node down by ending its inbound stream.
package net
