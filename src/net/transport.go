package net

// Transport provides an interface for connecting the streams of nodes running
// in the same process.
type Transport interface {
	// Connect creates the endpoint of a new id.
	Connect(id string) (*Endpoint, error)

	// Disconnect closes the endpoint of id and forgets it. Lines sent to id
	// afterwards are dropped.
	Disconnect(id string)

	// Close permanently closes a transport, stopping any associated
	// goroutines.
	Close() error
}
