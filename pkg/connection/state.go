package connection

import "time"

type State uint8

const (
	Idle State = iota
	Connecting
	Open
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is published on every connection state change.
type Status struct {
	State State
	// Attempt is the number of the scheduled reconnect attempt, 0 if none.
	Attempt int
	// Delay before the scheduled reconnect attempt.
	Delay time.Duration
	// Terminal is set once the reconnect attempts are exhausted.
	Terminal bool
}

// Reconnecting tells if a reconnect attempt is scheduled or in progress.
func (s Status) Reconnecting() bool { return s.Attempt > 0 && !s.Terminal && s.State != Open }
