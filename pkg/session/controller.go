// Package session puts the client together and serves the UI commands.
//
// The Controller owns one loop with the connection manager, the game
// synchronizer and the voice coordinator on it. Its methods are safe to call
// from any goroutine; UI subscribers are called on the loop.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/chessduel/client/pkg/api"
	"github.com/chessduel/client/pkg/config"
	"github.com/chessduel/client/pkg/connection"
	"github.com/chessduel/client/pkg/event"
	"github.com/chessduel/client/pkg/game"
	"github.com/chessduel/client/pkg/logger"
	"github.com/chessduel/client/pkg/loop"
	"github.com/chessduel/client/pkg/monitoring"
	"github.com/chessduel/client/pkg/signaling"
	"github.com/jonboulle/clockwork"
	"github.com/pion/webrtc/v4"
)

var ErrClosed = errors.New("session is closed")

// matchmaking requests replace each other while they wait for the connection.
var matchmaking = []api.Tag{api.InitGame, api.CreateGame, api.JoinGame}

// Deps are the outside world of the client, faked in tests.
type Deps struct {
	Clock     clockwork.Clock
	Dialer    connection.Dialer
	Peers     signaling.PeerFactory
	Validator game.Validator
	Metrics   *monitoring.Metrics
	// RemoteAudio plays the opponent's voice, optional.
	RemoteAudio func(track *webrtc.TrackRemote)
}

type Controller struct {
	conf config.Config
	loop *loop.Loop
	hub  *event.Hub
	conn *connection.Manager
	game *game.Synchronizer
	peer *signaling.Coordinator
	log  *logger.Logger

	closed bool
}

func New(conf config.Config, deps Deps, log *logger.Logger) *Controller {
	l := loop.New(deps.Clock, log)
	hub := event.NewHub(log)
	conn := connection.New(l, hub, deps.Dialer, connection.Options{
		Reconnect:   conf.Reconnect,
		Heartbeat:   conf.Heartbeat.Interval,
		DialTimeout: conf.Server.DialTimeout,
	}, deps.Metrics, log)
	sync := game.New(l, hub, conn, deps.Validator, game.Options{
		TotalTime: conf.Game.TotalTime,
		Increment: conf.Game.Increment,
		Tick:      conf.Clock.Tick,

		Opponent:   conf.Player.Opponent,
		FirstMover: conf.Player.FirstMover,
	}, deps.Metrics, log)
	peer := signaling.New(l, hub, conn, deps.Peers, deps.Metrics, log)
	peer.SetAudioSink(deps.RemoteAudio)

	c := &Controller{conf: conf, loop: l, hub: hub, conn: conn, game: sync, peer: peer, log: log.Module("session")}
	l.Run()
	l.Call(func() {
		sync.SetPlayer(conf.Player.Name)
		sync.Start()
		peer.Start()
	})
	return c
}

// do runs the command on the loop.
func (c *Controller) do(fn func()) error {
	ok := false
	done := c.loop.Call(func() {
		if c.closed {
			return
		}
		ok = true
		fn()
	})
	if !done || !ok {
		return ErrClosed
	}
	return nil
}

// FindGame asks for a random opponent.
func (c *Controller) FindGame(total, increment time.Duration) error {
	return c.matchmake(api.InitGame, total, increment)
}

// CreateGame opens a private game that the opponent joins by its id.
func (c *Controller) CreateGame(total, increment time.Duration) error {
	return c.matchmake(api.CreateGame, total, increment)
}

func (c *Controller) matchmake(tag api.Tag, total, increment time.Duration) error {
	return c.do(func() {
		c.game.SetTimeControl(total, increment)
		c.conn.Connect(c.conf.Server.Address)
		c.conn.Drop(matchmaking...)
		c.conn.Send(tag, api.InitGameRequest{
			PlayerName: c.game.Player(),
			TotalTime:  int(total.Seconds()),
			Increment:  int(increment.Seconds()),
		})
	})
}

func (c *Controller) JoinGame(gameId string) error {
	return c.do(func() {
		c.conn.Connect(c.conf.Server.Address)
		c.conn.Drop(matchmaking...)
		c.conn.Send(api.JoinGame, api.JoinGameRequest{PlayerName: c.game.Player(), GameId: gameId})
	})
}

// RequestMove sends the move if it's legal and the player's turn.
func (c *Controller) RequestMove(token string) (err error) {
	if e := c.do(func() { err = c.game.RequestMove(token) }); e != nil {
		return e
	}
	return
}

func (c *Controller) ToggleMute() (muted bool, err error) {
	if e := c.do(func() { muted, err = c.peer.ToggleMute() }); e != nil {
		return true, e
	}
	return
}

// SendAudio sends a frame of the player's Opus encoded voice,
// the frame is dropped while muted.
func (c *Controller) SendAudio(frame []byte, duration time.Duration) (err error) {
	if e := c.do(func() { err = c.peer.WriteAudio(frame, duration) }); e != nil {
		return e
	}
	return
}

// RequestReconnect rejoins a game, e.g. after a restart of the client
// or when the automatic reconnects have given up.
func (c *Controller) RequestReconnect(sessionId string) error {
	return c.do(func() {
		c.conn.SetSession(sessionId, c.game.Player())
		switch c.conn.State() {
		case connection.Open:
			c.conn.Resume()
		case connection.Idle:
			c.conn.Connect(c.conf.Server.Address)
		default:
			c.conn.Reconnect()
		}
	})
}

// Leave drops the current game and its voice.
func (c *Controller) Leave() error {
	return c.do(func() {
		c.peer.Close()
		c.game.Leave()
	})
}

func (c *Controller) GameSnapshot() (s game.Snapshot) {
	_ = c.do(func() { s = c.game.Snapshot() })
	return
}

func (c *Controller) PeerSnapshot() (s signaling.Snapshot) {
	_ = c.do(func() { s = c.peer.Snapshot() })
	return
}

func (c *Controller) ConnectionStatus() (s connection.Status) {
	_ = c.do(func() { s = c.conn.Status() })
	return
}

// Subscribe adds a UI handler of a wire tag or a local topic.
func (c *Controller) Subscribe(topic string, fn event.Handler) (unsubscribe func()) {
	return c.hub.Subscribe(topic, fn)
}

// Close tears everything down. It's safe to call more than once.
func (c *Controller) Close() {
	_ = c.do(func() {
		c.closed = true
		c.peer.Stop()
		c.game.Stop()
		c.conn.Close()
		c.log.Info().Msg("Closed")
	})
	c.loop.Stop()
}

// Run and Shutdown let the controller join a service group.
func (c *Controller) Run() {}

func (c *Controller) Shutdown(context.Context) error {
	c.Close()
	return nil
}

func (c *Controller) String() string { return "session" }
