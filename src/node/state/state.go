// Package state defines the lifecycle states of a node runtime.
package state

import (
	"sync"
	"sync/atomic"
)

// State captures the state of a node: Starting, Running, ShuttingDown or
// Shutdown.
type State uint32

const (
	// Starting is the state of a node that has been constructed but whose
	// producers have not been started yet.
	Starting State = iota

	// Running is the state in which the consumer loop is dispatching events.
	Running

	// ShuttingDown is the state in which a terminate event has been observed
	// and the producers are being stopped.
	ShuttingDown

	// Shutdown is the state of a node whose consumer loop has exited and whose
	// producers have been joined.
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case ShuttingDown:
		return "ShuttingDown"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Manager wraps a State with atomic get and set methods. It also tracks the
// goroutines launched by the node so they can be joined on shutdown.
type Manager struct {
	state State
	wg    sync.WaitGroup
}

// GetState returns the current state.
func (s *Manager) GetState() State {
	stateAddr := (*uint32)(&s.state)
	return State(atomic.LoadUint32(stateAddr))
}

// SetState sets the state.
func (s *Manager) SetState(st State) {
	stateAddr := (*uint32)(&s.state)
	atomic.StoreUint32(stateAddr, uint32(st))
}

// GoFunc launches a goroutine for the given function and adds it to the
// waitgroup.
func (s *Manager) GoFunc(f func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		f()
	}()
}

// WaitRoutines waits for all the goroutines launched with GoFunc to complete.
func (s *Manager) WaitRoutines() {
	s.wg.Wait()
}
