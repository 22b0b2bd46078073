package loop

import (
	"context"
	"testing"
	"time"

	"github.com/chessduel/client/pkg/logger"
	"github.com/jonboulle/clockwork"
)

func newTestLoop(t *testing.T) (*Loop, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	l := New(clock, logger.Nop())
	l.Run()
	t.Cleanup(l.Stop)
	return l, clock
}

func TestLoopOrder(t *testing.T) {
	l, _ := newTestLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Call(func() {})

	if len(got) != 100 {
		t.Fatalf("ran %v tasks of 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %v ran at position %v", v, i)
		}
	}
}

func TestLoopSurvivesPanic(t *testing.T) {
	l, _ := newTestLoop(t)

	ran := false
	l.Post(func() { panic("boom") })
	l.Call(func() { ran = true })
	if !ran {
		t.Errorf("the loop has died after a panic")
	}
}

func TestLoopStop(t *testing.T) {
	l, _ := newTestLoop(t)
	l.Stop()
	l.Stop()
	<-l.Done()
	if l.Post(func() {}) {
		t.Errorf("a stopped loop accepts tasks")
	}
	if l.Call(func() {}) {
		t.Errorf("a stopped loop runs tasks")
	}
}

func TestTimer(t *testing.T) {
	l, clock := newTestLoop(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	fired := make(chan struct{}, 2)
	l.AfterFunc(time.Second, func() { fired <- struct{}{} })
	stopped := l.AfterFunc(time.Second, func() { fired <- struct{}{} })
	stopped.Stop()
	stopped.Stop()

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("the timer has not fired")
	}
	l.Call(func() {})
	select {
	case <-fired:
		t.Errorf("a stopped timer has fired")
	case <-time.After(50 * time.Millisecond):
	}

	var nilTimer *Timer
	nilTimer.Stop()
}

func TestTicker(t *testing.T) {
	l, clock := newTestLoop(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ticks := make(chan struct{}, 10)
	ticker := l.Every(100*time.Millisecond, func() { ticks <- struct{}{} })
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		clock.Advance(100 * time.Millisecond)
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatalf("tick %v is missing", i)
		}
	}
	ticker.Stop()
	ticker.Stop()
	clock.Advance(100 * time.Millisecond)
	l.Call(func() {})
	select {
	case <-ticks:
		t.Errorf("a stopped ticker ticks")
	case <-time.After(50 * time.Millisecond):
	}
}
