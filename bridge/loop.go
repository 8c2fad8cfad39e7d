package bridge

import (
	"sync"
	"time"
)

// Loop is a single-goroutine task queue standing in for the spec's event
// loop thread. Submit is the Go equivalent of the source's zero-delay
// timer: it hands fn to the loop goroutine instead of running it inline,
// so stream callbacks observe a consistent, single-threaded execution
// context the same way they would on a real reactor loop, even though the
// rest of h3 is goroutine-per-connection.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	closed chan struct{}
}

// NewLoop starts the loop goroutine with the given task queue depth.
func NewLoop(queueDepth int) *Loop {
	l := &Loop{
		tasks:  make(chan func(), queueDepth),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.closed)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.done:
			// Drain whatever is already queued before exiting so a
			// Stop() racing with a just-submitted close callback still
			// runs it.
			for {
				select {
				case fn := <-l.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues fn to run on the loop goroutine and reports whether it
// was accepted. Once Stop has been called, fn is dropped and Submit
// returns false instead of blocking forever on a queue nobody drains
// anymore — the loop's lifetime is now tied to the stream it serves (see
// stream.finishClose), so a drop here means the stream has already
// finished closing, not that a live stream silently lost an event.
func (l *Loop) Submit(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// ScheduleAfter runs fn on the loop goroutine after d has elapsed — the Go
// stand-in for the spec's delayed timer (§7's periodic scheduling, §8
// scenario 5's 1000ms-paced events). The timer itself fires on Go's
// runtime timer goroutine, which then hands fn to Submit like any other
// task, so it still observes the loop's single-threaded execution context
// and the same post-Stop drop behavior.
func (l *Loop) ScheduleAfter(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { l.Submit(fn) })
}

// Stop signals the loop to drain and exit, and blocks until it has.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
	<-l.closed
}
