// Package peers describes the members of a simulated cluster and the gossip
// topology that links them.
//
// A peer is identified by its node id, the same string the node receives in
// the node_id field of its init message. A peer may also list its neighbors:
// the nodes it gossips to when running the broadcast protocol. When no peer
// lists any neighbor, the members are arranged in a ring.
//
// The simulator expects to find a peers.json file in its data directory. The
// file holds a JSON array of peers:
//
//	[
//	  {"id": "n1", "neighbors": ["n2"]},
//	  {"id": "n2", "neighbors": ["n1", "n3"]},
//	  {"id": "n3", "neighbors": ["n2"]}
//	]
package peers
