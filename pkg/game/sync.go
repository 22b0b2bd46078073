// Package game keeps the local view of a server-authoritative game.
//
// The Synchronizer follows the server's game events, runs the move clock
// between server clock snapshots and declares a provisional timeout
// when the clock of the player to move runs out.
// All the methods must be called on the loop.
package game

import (
	"maps"
	"strings"
	"time"

	"github.com/chessduel/client/pkg/api"
	"github.com/chessduel/client/pkg/chess"
	"github.com/chessduel/client/pkg/connection"
	"github.com/chessduel/client/pkg/event"
	"github.com/chessduel/client/pkg/logger"
	"github.com/chessduel/client/pkg/loop"
	"github.com/chessduel/client/pkg/monitoring"
)

type Validator interface {
	ApplyMove(token string) (chess.Board, error)
	CurrentBoard() chess.Board
	History() []string
	Legal(token string) bool
	Reset()
}

// Conn is the part of the connection manager the game needs.
type Conn interface {
	Send(tag api.Tag, data any)
	SetSession(id, player string)
	ClearSession()
	Resume()
	State() connection.State
}

type Options struct {
	TotalTime time.Duration
	Increment time.Duration
	Tick      time.Duration
	// Opponent and FirstMover are used for a game restored without them,
	// e.g. after a restart of the client.
	Opponent   string
	FirstMover string
}

type Synchronizer struct {
	loop      *loop.Loop
	hub       *event.Hub
	conn      Conn
	validator Validator
	metrics   *monitoring.Metrics
	log       *logger.Logger
	opts      Options

	player string
	game   *Session

	ticker   *loop.Ticker
	lastTick time.Time
	subs     event.Group
}

func New(l *loop.Loop, hub *event.Hub, conn Conn, v Validator, opts Options, m *monitoring.Metrics, log *logger.Logger) *Synchronizer {
	if opts.Tick <= 0 {
		opts.Tick = 100 * time.Millisecond
	}
	return &Synchronizer{
		loop:      l,
		hub:       hub,
		conn:      conn,
		validator: v,
		metrics:   m,
		log:       log.Module("game"),
		opts:      opts,
	}
}

// Start subscribes to the server events.
func (s *Synchronizer) Start() {
	s.subs.Add(
		event.On(s.hub, string(api.GameStarted), s.onGameStarted),
		event.On(s.hub, string(api.Move), s.onMove),
		event.On(s.hub, string(api.GameState), s.onGameState),
		event.On(s.hub, string(api.Reconnected), s.onReconnected),
		event.On(s.hub, string(api.GameOver), s.onGameOver),
		event.On(s.hub, string(api.Timeout), s.onGameOver),
		event.On(s.hub, string(api.Waiting), s.onNotice),
		event.On(s.hub, string(api.GameCreated), s.onNotice),
		event.On(s.hub, string(api.OpponentDisconnected), s.onNotice),
		event.On(s.hub, string(api.Error), s.onNotice),
	)
}

// Stop ends the clock and unsubscribes.
func (s *Synchronizer) Stop() {
	s.End()
	s.subs.Clear()
}

// SetPlayer sets the name of the local player for the next game.
func (s *Synchronizer) SetPlayer(name string) { s.player = name }

func (s *Synchronizer) Player() string { return s.player }

// SetTimeControl sets the clocks of the next game.
func (s *Synchronizer) SetTimeControl(total, increment time.Duration) {
	s.opts.TotalTime, s.opts.Increment = total, increment
}

func (s *Synchronizer) onGameStarted(in api.In) {
	rq := api.Unwrap[api.GameStartedResponse](in.Data)
	if rq == nil || rq.GameId == "" || rq.Opponent == "" {
		s.malformed(in, "no game id or opponent")
		return
	}
	if in.Turn != s.player && in.Turn != rq.Opponent {
		s.malformed(in, "no first mover")
		return
	}

	s.End()
	s.validator.Reset()
	s.game = &Session{
		Id:         rq.GameId,
		Local:      s.player,
		Remote:     rq.Opponent,
		FirstMover: in.Turn,
		Turn:       in.Turn,
		Clocks:     map[string]time.Duration{s.player: s.opts.TotalTime, rq.Opponent: s.opts.TotalTime},
		Increment:  s.opts.Increment,
		Board:      s.validator.CurrentBoard(),
	}
	if in.Time != nil {
		s.applyClocks(in.Time)
	}
	s.conn.SetSession(rq.GameId, s.player)
	s.log.Info().Msgf("Game %v started: %v vs %v, %v moves first", rq.GameId, s.player, rq.Opponent, in.Turn)
	s.startClock()
	s.publish()
}

func (s *Synchronizer) onMove(in api.In) {
	mv := api.Unwrap[api.MoveResponse](in.Data)
	if mv == nil || mv.Move == "" {
		s.malformed(in, "no move")
		s.resync()
		return
	}
	g := s.game
	if g == nil || !s.sameGame(mv.GameId) {
		s.log.Debug().Msgf("Move %v of another game %v", mv.Move, mv.GameId)
		return
	}
	if g.Over() && !g.Result.Local {
		return
	}

	turn := mv.Turn
	if turn == "" {
		turn = in.Turn
	}
	if !g.Player(turn) {
		s.log.Warn().Msgf("Move %v gives the turn to a stranger %q", mv.Move, turn)
		s.resync()
		return
	}

	s.charge()
	mover := g.Turn
	board, err := s.validator.ApplyMove(mv.Move)
	if err != nil {
		s.log.Warn().Err(err).Msgf("Move %v doesn't fit the board", mv.Move)
		s.resync()
		return
	}
	if mover == turn {
		// the server moved for the other side
		mover = g.Opponent(turn)
	}

	g.Board = board
	g.Turn = turn
	clocks := in.Time
	if clocks == nil {
		clocks = mv.Time
	}
	if clocks != nil {
		s.applyClocks(clocks)
	}
	history := s.validator.History()
	g.History = append(g.History, MoveRecord{
		SAN:       history[len(history)-1],
		Mover:     mover,
		TurnAfter: turn,
		Clocks:    maps.Clone(g.Clocks),
	})
	if g.Over() {
		// the server took the move, so the local timeout was early
		g.Result = nil
		s.startClock()
	}
	s.publish()
}

func (s *Synchronizer) onGameState(in api.In) {
	state := api.Unwrap[api.GameStateResponse](in.Data)
	if state == nil {
		s.malformed(in, "no state")
		return
	}
	s.restore(*state, in)
}

func (s *Synchronizer) onReconnected(in api.In) {
	rc := api.Unwrap[api.ReconnectedResponse](in.Data)
	if rc == nil {
		s.malformed(in, "no data")
		return
	}
	if rc.HasSnapshot() {
		s.restore(rc.GameStateResponse, in)
		return
	}
	if s.game != nil && rc.PlayerName != "" && rc.PlayerName != s.player {
		s.notice(Notice{Event: in.Event, Message: rc.PlayerName + " is back", GameId: s.game.Id})
	}
}

// restore rebuilds the game from a server snapshot.
func (s *Synchronizer) restore(state api.GameStateResponse, in api.In) {
	if state.GameId == "" && s.game != nil {
		state.GameId = s.game.Id
	}
	if state.GameId == "" {
		s.malformed(in, "no game id")
		return
	}
	if state.Turn == "" {
		state.Turn = in.Turn
	}
	if state.Time == nil {
		state.Time = in.Time
	}

	g := s.game
	if g == nil || g.Id != state.GameId {
		g = &Session{Id: state.GameId, Local: s.player, Increment: s.opts.Increment,
			Clocks: map[string]time.Duration{s.player: s.opts.TotalTime}}
		if s.opts.Opponent != s.player {
			g.Remote = s.opts.Opponent
		}
	}
	for name := range state.Time {
		if name != g.Local {
			g.Remote = name
		}
	}
	if g.Remote == "" && state.Turn != g.Local {
		g.Remote = state.Turn
	}
	if g.Remote != "" {
		if _, ok := g.Clocks[g.Remote]; !ok {
			g.Clocks[g.Remote] = s.opts.TotalTime
		}
	}
	if state.Turn != "" && !g.Player(state.Turn) {
		s.log.Warn().Msgf("Game %v gives the turn to a stranger %q", g.Id, state.Turn)
		state.Turn = ""
	}

	s.End()
	s.validator.Reset()
	g.History = g.History[:0]
	g.Result = nil
	if g.FirstMover == "" {
		g.FirstMover = s.firstMover(g, state)
	}
	mover := g.FirstMover
	for _, m := range state.Moves {
		if _, err := s.validator.ApplyMove(m); err != nil {
			s.log.Error().Err(err).Msgf("Couldn't replay %v of game %v", m, g.Id)
			break
		}
		history := s.validator.History()
		next := g.Opponent(mover)
		g.History = append(g.History, MoveRecord{SAN: history[len(history)-1], Mover: mover, TurnAfter: next})
		mover = next
	}
	g.Board = s.validator.CurrentBoard()
	if state.Turn != "" {
		g.Turn = state.Turn
	} else {
		g.Turn = mover
	}
	s.game = g
	if state.Time != nil {
		s.applyClocks(state.Time)
	}

	s.log.Info().Msgf("Game %v restored at move %v, %v to move", g.Id, len(g.History), g.Turn)
	if state.Status != "" && state.Status != api.StatusOngoing {
		g.Result = &Outcome{Reason: state.Status}
		s.conn.ClearSession()
		s.publish()
		return
	}
	s.conn.SetSession(g.Id, g.Local)
	s.startClock()
	s.publish()
}

// firstMover tells who made the first of the moves. The server's turn
// decides it, the configured first mover is used when the turn is unknown.
func (s *Synchronizer) firstMover(g *Session, state api.GameStateResponse) string {
	if g.Player(state.Turn) {
		// the first mover moves on even plies
		if len(state.Moves)%2 == 1 {
			return g.Opponent(state.Turn)
		}
		return state.Turn
	}
	if g.Player(s.opts.FirstMover) {
		return s.opts.FirstMover
	}
	return g.Local
}

func (s *Synchronizer) onGameOver(in api.In) {
	over := api.Unwrap[api.GameOverResponse](in.Data)
	if over == nil {
		s.malformed(in, "no result")
		return
	}
	g := s.game
	if g == nil {
		return
	}
	reason := over.Status
	if reason == "" && in.Event == api.Timeout {
		reason = ReasonTimeout
	}
	if reason == "" {
		reason = over.Message
	}
	s.charge()
	s.End()
	if g.Result != nil && g.Result.Local && g.Result.Winner != over.Winner {
		s.log.Info().Msgf("The server overrides the local result: %v wins, not %v", over.Winner, g.Result.Winner)
	}
	g.Result = &Outcome{Winner: over.Winner, Reason: reason}
	s.conn.ClearSession()
	s.log.Info().Msgf("Game %v is over: %v, winner %q", g.Id, reason, over.Winner)
	s.publish()
}

func (s *Synchronizer) onNotice(in api.In) {
	msg := api.Unwrap[api.MessageResponse](in.Data)
	if msg == nil {
		s.malformed(in, "no message")
		return
	}
	n := Notice{Event: in.Event, Message: msg.Message}
	switch in.Event {
	case api.GameCreated:
		if gc := api.Unwrap[api.GameCreatedResponse](in.Data); gc != nil {
			n.GameId = gc.GameId
		}
	case api.Error:
		text := strings.ToLower(msg.Message)
		switch {
		case strings.Contains(text, "not your turn"):
			n.Err = ErrNotYourTurn
		case strings.Contains(text, "invalid move"):
			n.Err = ErrInvalidMove
		}
		s.log.Warn().Msgf("Server error: %v", msg.Message)
	}
	if s.game != nil && n.GameId == "" {
		n.GameId = s.game.Id
	}
	s.notice(n)
}

// RequestMove sends the player's move to the server.
// The board changes only when the server echoes the move back.
func (s *Synchronizer) RequestMove(token string) error {
	g := s.game
	switch {
	case g == nil:
		return ErrNoGame
	case g.Over():
		return ErrGameOver
	case !g.MyTurn():
		return ErrNotYourTurn
	case !s.validator.Legal(token):
		return ErrInvalidMove
	}
	s.conn.Send(api.Move, api.MoveRequest{GameId: g.Id, Move: token})
	return nil
}

// Leave drops the game on the client side.
func (s *Synchronizer) Leave() {
	if s.game == nil {
		return
	}
	s.End()
	s.conn.ClearSession()
	s.log.Info().Msgf("Left game %v", s.game.Id)
	s.game = nil
	s.publish()
}

// End stops the clock. It's safe to call more than once.
func (s *Synchronizer) End() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
}

func (s *Synchronizer) Snapshot() Snapshot {
	if s.game == nil {
		return Snapshot{}
	}
	return Snapshot{Game: s.game.copy()}
}

func (s *Synchronizer) resync() {
	if s.game == nil {
		return
	}
	s.metrics.Resyncs.Inc()
	s.log.Info().Msgf("Resync of game %v", s.game.Id)
	s.conn.Resume()
}

func (s *Synchronizer) sameGame(id string) bool { return id == "" || id == s.game.Id }

func (s *Synchronizer) applyClocks(clocks api.Clocks) {
	for name, left := range clocks.Durations() {
		if s.game.Player(name) {
			s.game.Clocks[name] = left
		}
	}
	s.lastTick = s.loop.Now()
}

func (s *Synchronizer) malformed(in api.In, why string) {
	s.metrics.Malformed.Inc()
	s.log.Warn().Msgf("Dropped %v: %v", in.Event, why)
}

func (s *Synchronizer) publish() { s.hub.Publish(event.GameSnapshot, s.Snapshot()) }

func (s *Synchronizer) notice(n Notice) { s.hub.Publish(event.GameNotice, n) }
