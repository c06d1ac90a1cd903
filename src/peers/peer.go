package peers

// Peer is one member of a cluster.
type Peer struct {
	ID        string   `json:"id"`
	Neighbors []string `json:"neighbors,omitempty"`
}

// NewPeer ...
func NewPeer(id string, neighbors ...string) *Peer {
	return &Peer{
		ID:        id,
		Neighbors: neighbors,
	}
}
