package game

import (
	"github.com/chessduel/client/pkg/api"
	"github.com/chessduel/client/pkg/connection"
)

func (s *Synchronizer) startClock() {
	if s.ticker != nil || s.game == nil || s.game.Over() {
		return
	}
	s.lastTick = s.loop.Now()
	s.ticker = s.loop.Every(s.opts.Tick, s.tick)
}

func (s *Synchronizer) tick() {
	if s.ticker == nil || s.game == nil || s.game.Over() {
		return
	}
	if s.charge() {
		s.timeout()
	}
	s.publish()
}

// charge takes the time passed since the last tick from the player to move.
// Nothing is taken while the connection is down.
// Returns true when the clock has run out.
func (s *Synchronizer) charge() bool {
	now := s.loop.Now()
	elapsed := now.Sub(s.lastTick)
	s.lastTick = now
	g := s.game
	if g == nil || g.Over() || s.ticker == nil || elapsed <= 0 {
		return false
	}
	if s.conn.State() != connection.Open || !g.Player(g.Turn) {
		return false
	}
	left := g.Clocks[g.Turn] - elapsed
	if left < 0 {
		left = 0
	}
	g.Clocks[g.Turn] = left
	return left == 0
}

// timeout concludes the game for the opponent of the player who ran out.
// The server may still decide otherwise.
func (s *Synchronizer) timeout() {
	g := s.game
	s.End()
	winner := g.Opponent(g.Turn)
	g.Result = &Outcome{Winner: winner, Reason: ReasonTimeout, Local: true}
	s.metrics.LocalTimeout.Inc()
	s.log.Info().Msgf("%v has run out of time in game %v", g.Turn, g.Id)
	s.conn.Send(api.Timeout, api.TimeoutNotice{GameId: g.Id, Winner: winner})
}
