package game

import (
	"errors"
	"maps"
	"time"

	"github.com/chessduel/client/pkg/api"
	"github.com/chessduel/client/pkg/chess"
)

var (
	ErrNoGame      = errors.New("no game")
	ErrGameOver    = errors.New("game is over")
	ErrNotYourTurn = errors.New("not your turn")
	ErrInvalidMove = errors.New("invalid move")
)

// Reasons of the game end that the client can tell itself.
const (
	ReasonTimeout = "timeout"
	ReasonLeft    = "left"
)

// Outcome is the result of a game. A local timeout is provisional and
// the server's verdict always replaces it.
type Outcome struct {
	Winner string
	Reason string
	Local  bool
}

type MoveRecord struct {
	SAN       string
	Mover     string
	TurnAfter string
	// Clocks after the move, nil when unknown.
	Clocks map[string]time.Duration
}

// Session is the state of one game, owned by the Synchronizer.
type Session struct {
	Id         string
	Local      string
	Remote     string
	FirstMover string
	Turn       string
	Clocks     map[string]time.Duration
	Increment  time.Duration
	History    []MoveRecord
	Board      chess.Board
	Result     *Outcome
}

func (s *Session) Over() bool { return s.Result != nil }

func (s *Session) MyTurn() bool { return s.Turn == s.Local }

// Player tells if the name is one of the two players.
func (s *Session) Player(name string) bool {
	return name != "" && (name == s.Local || name == s.Remote)
}

func (s *Session) Opponent(name string) string {
	if name == s.Local {
		return s.Remote
	}
	return s.Local
}

func (s *Session) copy() *Session {
	c := *s
	c.Clocks = maps.Clone(s.Clocks)
	c.History = make([]MoveRecord, len(s.History))
	for i, r := range s.History {
		r.Clocks = maps.Clone(r.Clocks)
		c.History[i] = r
	}
	if s.Result != nil {
		r := *s.Result
		c.Result = &r
	}
	return &c
}

// Snapshot is a read-only copy of the game for the UI.
// Game is nil when there is no game.
type Snapshot struct {
	Game *Session
}

func (s Snapshot) Active() bool { return s.Game != nil && !s.Game.Over() }

// Notice is a server message shown to the player as is.
type Notice struct {
	Event   api.Tag
	Message string
	GameId  string
	// Err is set for the rejections of the player's move.
	Err error
}
