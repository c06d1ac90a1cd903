package node

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrTimerStopped is returned by a timer task that gave up because the timer,
// or its consumer, was shutting down. It ends the timer without being logged
// as a failure.
var ErrTimerStopped = errors.New("timer stopped")

// timerFactory returns a channel that fires after d, and a function releasing
// the underlying timer.
type timerFactory func(d time.Duration) (<-chan time.Time, func())

func newRealTimer(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}

// PeriodicTimer runs a task in its own goroutine, once immediately and then
// once per period, until it is stopped or the task fails. Stop wakes the
// goroutine out of its sleep instead of letting it run out the period.
type PeriodicTimer struct {
	task         func() error
	period       time.Duration
	timerFactory timerFactory
	logger       *logrus.Entry

	stopped  uint32
	stopCh   chan struct{} //closed to wake the goroutine
	doneCh   chan struct{} //closed when the goroutine exits
	stopOnce sync.Once
}

// NewPeriodicTimer starts a PeriodicTimer.
func NewPeriodicTimer(task func() error, period time.Duration, logger *logrus.Entry) *PeriodicTimer {
	return newPeriodicTimer(task, period, newRealTimer, logger)
}

func newPeriodicTimer(task func() error, period time.Duration, factory timerFactory, logger *logrus.Entry) *PeriodicTimer {
	p := &PeriodicTimer{
		task:         task,
		period:       period,
		timerFactory: factory,
		logger:       logger,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	go p.run()

	return p
}

func (p *PeriodicTimer) run() {
	defer close(p.doneCh)

	for {
		if p.Stopped() {
			return
		}

		if err := p.task(); err != nil {
			if err != ErrTimerStopped {
				p.logger.WithError(err).Error("Periodic task failed, stopping timer")
			}
			return
		}

		wait, release := p.timerFactory(p.period)
		select {
		case <-wait:
			release()
		case <-p.stopCh:
			release()
			return
		}
	}
}

// Stopped reports whether Stop has been called.
func (p *PeriodicTimer) Stopped() bool {
	return atomic.LoadUint32(&p.stopped) == 1
}

// Stop signals the goroutine to exit, wakes it, and blocks until it has
// exited. Calling Stop more than once is a no-op.
func (p *PeriodicTimer) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreUint32(&p.stopped, 1)
		close(p.stopCh)
	})
	<-p.doneCh
}
