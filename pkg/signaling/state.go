package signaling

type State uint8

const (
	StateNew State = iota
	HaveLocalOffer
	HaveRemoteOffer
	Stable
	Connected
	Disconnected
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case HaveLocalOffer:
		return "have-local-offer"
	case HaveRemoteOffer:
		return "have-remote-offer"
	case Stable:
		return "stable"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

type Role uint8

const (
	Responder Role = iota
	Initiator
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// Snapshot is the voice status for the UI.
type Snapshot struct {
	GameId  string
	State   State
	Role    Role
	Muted   bool
	Healthy bool
	Active  bool
}
