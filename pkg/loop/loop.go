// Package loop provides a single-goroutine cooperative scheduler.
//
// Every callback of the client (socket frames, socket close, peer state changes,
// timer fires) is posted to one Loop, so handlers never run concurrently
// and observe events strictly in the order they were posted.
package loop

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/chessduel/client/pkg/logger"
	"github.com/jonboulle/clockwork"
)

type Loop struct {
	clock clockwork.Clock
	log   *logger.Logger

	mu      sync.Mutex
	tasks   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func New(clock clockwork.Clock, log *logger.Logger) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loop{
		clock: clock,
		log:   log.Module("loop"),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Run starts the loop goroutine.
func (l *Loop) Run() { l.once.Do(func() { go l.run() }) }

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		if l.stopped {
			l.tasks = nil
			l.mu.Unlock()
			return
		}
		tasks := l.tasks
		l.tasks = nil
		l.mu.Unlock()

		for _, task := range tasks {
			l.exec(task)
		}
		if len(tasks) == 0 {
			<-l.wake
		}
	}
}

func (l *Loop) exec(task func()) {
	defer func() {
		if err := recover(); err != nil {
			l.log.Error().Msgf("recovered task panic: %v\n%s", err, debug.Stack())
		}
	}()
	task()
}

// Post queues the task, never blocks.
// Returns false when the loop is stopped.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs the task on the loop and waits for it.
// Must not be called from the loop itself.
func (l *Loop) Call(task func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() { defer close(finished); task() }) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// Stop drops all pending tasks and ends the loop.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed when the loop goroutine exits.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) Clock() clockwork.Clock { return l.clock }

func (l *Loop) Now() time.Time { return l.clock.Now() }
