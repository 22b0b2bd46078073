// Package api defines the wire protocol between the duel client and the game server.
//
// Each frame, in both directions, is a JSON-encoded envelope of the following structure:
//
//	event - (required) one of the predefined event tags;
//	 data - (optional) an event payload;
//	 turn - (optional) the player whose turn it is after the event;
//	 time - (optional) a server clock snapshot, seconds left per player.
//
// The envelopes differ by their tags, with which it is possible to unwrap
// the payload into distinct request/response data structures.
//
// Example:
//
//	{"event":"GAME_STARTED","data":{"opponent":"bob","game_id":"0c6f..."},"turn":"alice"}
package api

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
)

type Tag string

// Tags consumed from the server.
const (
	GameStarted          Tag = "GAME_STARTED"
	GameState            Tag = "GAME_STATE"
	GameCreated          Tag = "GAME_CREATED"
	Reconnected          Tag = "RECONNECTED"
	Move                 Tag = "MOVE"
	GameOver             Tag = "GAME_OVER"
	Timeout              Tag = "TIMEOUT"
	Offer                Tag = "OFFER"
	Answer               Tag = "ANSWER"
	IceCandidate         Tag = "ICE_CANDIDATE"
	Waiting              Tag = "WAITING"
	Error                Tag = "ERROR"
	OpponentDisconnected Tag = "OPPONENT_DISCONNECTED"
)

// Tags produced by the client only.
const (
	InitGame   Tag = "INIT_GAME"
	CreateGame Tag = "CREATE_GAME"
	JoinGame   Tag = "JOIN_GAME"
	Reconnect  Tag = "RECONNECT"
	Ping       Tag = "PING"
)

func (t Tag) String() string { return string(t) }

var ErrMalformed = errors.New("malformed")

// Clocks is a server clock snapshot: seconds left per player.
type Clocks map[string]float64

// Durations converts the snapshot into remaining time per player.
func (c Clocks) Durations() map[string]time.Duration {
	if len(c) == 0 {
		return nil
	}
	out := make(map[string]time.Duration, len(c))
	for player, sec := range c {
		if sec < 0 {
			sec = 0
		}
		out[player] = time.Duration(sec * float64(time.Second))
	}
	return out
}

type In struct {
	Event Tag             `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"` // should be json.RawMessage for 2-pass unmarshal
	Turn  string          `json:"turn,omitempty"`
	Time  Clocks          `json:"time,omitempty"`
}

type Out struct {
	Event Tag `json:"event"`
	Data  any `json:"data,omitempty"`
}

// Parse reads one inbound frame.
func Parse(frame []byte) (In, error) {
	var in In
	if err := json.Unmarshal(frame, &in); err != nil {
		return In{}, errors.Join(ErrMalformed, err)
	}
	if in.Event == "" {
		return In{}, ErrMalformed
	}
	return in, nil
}

func (o Out) Marshal() ([]byte, error) { return json.Marshal(o) }

// Unwrap decodes a payload, returns nil if it's not possible.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if len(data) == 0 {
		return out
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}
