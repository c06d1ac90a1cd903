package node

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mosaicnetworks/gossipnode/src/common"
)

func TestPeriodicTimerRunsTask(t *testing.T) {
	var count int32
	ticked := make(chan struct{}, 10)

	timer := NewPeriodicTimer(func() error {
		if atomic.AddInt32(&count, 1) <= 3 {
			ticked <- struct{}{}
		}
		return nil
	}, time.Millisecond, common.NewTestEntry(t, common.TestLogLevel))
	defer timer.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-ticked:
		case <-time.After(time.Second):
			t.Fatalf("tick %d did not happen", i)
		}
	}
}

func TestPeriodicTimerStopWakesSleeper(t *testing.T) {
	started := make(chan struct{})
	var once int32

	timer := NewPeriodicTimer(func() error {
		if atomic.CompareAndSwapInt32(&once, 0, 1) {
			close(started)
		}
		return nil
	}, time.Hour, common.NewTestEntry(t, common.TestLogLevel))

	<-started

	start := time.Now()
	timer.Stop()
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Fatalf("Stop should wake the timer immediately, took %v", elapsed)
	}

	select {
	case <-timer.doneCh:
	default:
		t.Fatalf("timer goroutine should have exited after Stop")
	}
}

func TestPeriodicTimerStopTwice(t *testing.T) {
	timer := NewPeriodicTimer(func() error { return nil }, time.Hour, common.NewTestEntry(t, common.TestLogLevel))

	timer.Stop()
	timer.Stop()

	if !timer.Stopped() {
		t.Fatalf("timer should report Stopped")
	}
}

func TestPeriodicTimerTaskError(t *testing.T) {
	var count int32

	timer := NewPeriodicTimer(func() error {
		atomic.AddInt32(&count, 1)
		return errors.New("channel gone")
	}, time.Millisecond, common.NewTestEntry(t, common.TestLogLevel))

	select {
	case <-timer.doneCh:
	case <-time.After(time.Second):
		t.Fatalf("a failing task should end the timer")
	}

	if c := atomic.LoadInt32(&count); c != 1 {
		t.Fatalf("task should run exactly once, not %d times", c)
	}

	// Stop after the goroutine already exited must not block.
	timer.Stop()
}

func TestPeriodicTimerFactory(t *testing.T) {
	fire := make(chan time.Time)
	released := make(chan struct{}, 10)
	factory := func(d time.Duration) (<-chan time.Time, func()) {
		if d != 5*time.Second {
			t.Errorf("period should be 5s, not %v", d)
		}
		return fire, func() { released <- struct{}{} }
	}

	runs := make(chan struct{}, 10)
	timer := newPeriodicTimer(func() error {
		runs <- struct{}{}
		return nil
	}, 5*time.Second, factory, common.NewTestEntry(t, common.TestLogLevel))

	<-runs
	fire <- time.Now()
	<-runs
	if len(runs) != 0 {
		t.Fatalf("task should only run when the timer fires")
	}

	timer.Stop()

	if len(released) != 2 {
		t.Fatalf("each wait should release its timer, released %d", len(released))
	}
}
