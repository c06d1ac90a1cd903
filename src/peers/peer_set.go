package peers

import (
	"fmt"
)

// PeerSet is the ordered membership of a cluster.
type PeerSet struct {
	Peers []*Peer          `json:"peers"`
	ByID  map[string]*Peer `json:"-"`
}

// NewPeerSet creates a new PeerSet from a list of Peers. Later duplicates of
// an id replace earlier ones in ByID; Validate reports them.
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByID: make(map[string]*Peer),
	}

	for _, peer := range peers {
		peerSet.ByID[peer.ID] = peer
	}

	peerSet.Peers = peers

	return peerSet
}

// Validate checks that ids are unique and not empty, and that every neighbor
// is a member.
func (peerSet *PeerSet) Validate() error {
	if len(peerSet.Peers) == 0 {
		return fmt.Errorf("peer set is empty")
	}

	seen := make(map[string]bool, len(peerSet.Peers))
	for i, p := range peerSet.Peers {
		if p.ID == "" {
			return fmt.Errorf("peer %d has no id", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate peer %s", p.ID)
		}
		seen[p.ID] = true
	}

	for _, p := range peerSet.Peers {
		for _, n := range p.Neighbors {
			if _, ok := peerSet.ByID[n]; !ok {
				return fmt.Errorf("neighbor %s of %s is not a peer", n, p.ID)
			}
		}
	}

	return nil
}

// IDs returns the ids of the peers in order.
func (peerSet *PeerSet) IDs() []string {
	res := make([]string, len(peerSet.Peers))
	for i, p := range peerSet.Peers {
		res[i] = p.ID
	}
	return res
}

// Len returns the number of peers.
func (peerSet *PeerSet) Len() int {
	return len(peerSet.Peers)
}

// HasTopology reports whether any peer lists neighbors.
func (peerSet *PeerSet) HasTopology() bool {
	for _, p := range peerSet.Peers {
		if len(p.Neighbors) > 0 {
			return true
		}
	}
	return false
}

// Topology returns the neighbors of every peer, keyed by id. If no peer lists
// any neighbor, the peers are arranged in a ring first.
func (peerSet *PeerSet) Topology() map[string][]string {
	if !peerSet.HasTopology() {
		peerSet.ring()
	}

	res := make(map[string][]string, len(peerSet.Peers))
	for _, p := range peerSet.Peers {
		res[p.ID] = append([]string{}, p.Neighbors...)
	}
	return res
}

func (peerSet *PeerSet) ring() {
	n := len(peerSet.Peers)
	for i, p := range peerSet.Peers {
		switch n {
		case 1:
			p.Neighbors = nil
		case 2:
			p.Neighbors = []string{peerSet.Peers[(i+1)%n].ID}
		default:
			p.Neighbors = []string{
				peerSet.Peers[(i+n-1)%n].ID,
				peerSet.Peers[(i+1)%n].ID,
			}
		}
	}
}
