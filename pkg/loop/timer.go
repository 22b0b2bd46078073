package loop

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a one-shot timer whose callback runs on the loop.
// A stopped timer never runs its callback, even if it has already fired.
type Timer struct {
	t       clockwork.Timer
	stopped atomic.Bool
}

// AfterFunc schedules the task to run on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, task func()) *Timer {
	timer := &Timer{}
	timer.t = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if timer.stopped.Swap(true) {
				return
			}
			task()
		})
	})
	return timer
}

// Stop cancels the timer. It's safe to call on nil and more than once.
func (t *Timer) Stop() {
	if t == nil || t.stopped.Swap(true) {
		return
	}
	t.t.Stop()
}

// Ticker runs a task on the loop at a fixed interval.
type Ticker struct {
	t       clockwork.Ticker
	stopped atomic.Bool
	quit    chan struct{}
	once    sync.Once
}

// Every schedules the task to run on the loop every d.
// Ticks that come while the previous one is still queued are dropped.
func (l *Loop) Every(d time.Duration, task func()) *Ticker {
	ticker := &Ticker{t: l.clock.NewTicker(d), quit: make(chan struct{})}
	var pending atomic.Bool
	go func() {
		for {
			select {
			case <-ticker.quit:
				return
			case <-l.done:
				return
			case <-ticker.t.Chan():
				if pending.Swap(true) {
					continue
				}
				l.Post(func() {
					pending.Store(false)
					if ticker.stopped.Load() {
						return
					}
					task()
				})
			}
		}
	}()
	return ticker
}

// Stop cancels the ticker. It's safe to call on nil and more than once.
func (t *Ticker) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.stopped.Store(true)
		t.t.Stop()
		close(t.quit)
	})
}
