// Package signaling negotiates the voice connection between the two players.
//
// Offers, answers and ICE candidates travel through the game server.
// The first mover offers, the opponent answers. Remote candidates that come
// before the remote description are held and applied in arrival order
// right after it's set. All the methods must be called on the loop.
package signaling

import (
	"errors"
	"time"

	"github.com/chessduel/client/pkg/api"
	"github.com/chessduel/client/pkg/event"
	"github.com/chessduel/client/pkg/game"
	"github.com/chessduel/client/pkg/logger"
	"github.com/chessduel/client/pkg/loop"
	"github.com/chessduel/client/pkg/monitoring"
	pwebrtc "github.com/chessduel/client/pkg/network/webrtc"
	"github.com/pion/webrtc/v4"
)

var ErrNoPeer = errors.New("no voice connection")

type Sender interface {
	Send(tag api.Tag, data any)
}

type session struct {
	gameId string
	local  string
	remote string
	role   role
	peer   PeerConnection
	state  State

	remoteSet  bool
	pending    []webrtc.ICECandidateInit
	restarting bool
	degraded   bool
}

type Coordinator struct {
	loop    *loop.Loop
	hub     *event.Hub
	conn    Sender
	factory PeerFactory
	metrics *monitoring.Metrics
	log     *logger.Logger

	session *session
	// early is an offer that came before its session
	early *api.OfferMessage
	subs  event.Group
	sink  func(track *webrtc.TrackRemote)
}

func New(l *loop.Loop, hub *event.Hub, conn Sender, factory PeerFactory, m *monitoring.Metrics, log *logger.Logger) *Coordinator {
	return &Coordinator{loop: l, hub: hub, conn: conn, factory: factory, metrics: m, log: log.Module("voice")}
}

// SetAudioSink sets the player of the opponent's voice for the next sessions.
// The sink is called on a pion goroutine.
func (c *Coordinator) SetAudioSink(sink func(track *webrtc.TrackRemote)) { c.sink = sink }

// Start follows the game and the signaling messages.
func (c *Coordinator) Start() {
	c.subs.Add(
		event.On(c.hub, event.GameSnapshot, c.onGame),
		event.On(c.hub, string(api.Offer), c.onOffer),
		event.On(c.hub, string(api.Answer), c.onAnswer),
		event.On(c.hub, string(api.IceCandidate), c.onRemoteCandidate),
	)
}

func (c *Coordinator) Stop() {
	c.Close()
	c.subs.Clear()
}

// onGame opens a session once both players and the first mover are known
// and closes it when the game ends. A local timeout keeps the session,
// the server may still carry on with the game.
func (c *Coordinator) onGame(snap game.Snapshot) {
	g := snap.Game
	if g == nil || g.Over() && !g.Result.Local {
		c.Close()
		return
	}
	if g.Over() || g.Remote == "" || g.FirstMover == "" {
		return
	}
	c.Open(g.Id, g.Local, g.Remote, g.FirstMover)
}

// Open starts the negotiation for the game, does nothing if it's already started.
func (c *Coordinator) Open(gameId, local, remote, firstMover string) {
	if s := c.session; s != nil {
		if s.gameId == gameId {
			return
		}
		c.Close()
	}

	var r role = responder{}
	if local == firstMover {
		r = initiator{}
	}
	s := &session{gameId: gameId, local: local, remote: remote, role: r, state: StateNew}
	peer, err := c.factory(pwebrtc.Handlers{
		OnICECandidate: func(candidate webrtc.ICECandidateInit) {
			c.loop.Post(func() { c.onLocalCandidate(s, candidate) })
		},
		OnStateChange: func(state webrtc.PeerConnectionState) {
			c.loop.Post(func() { c.onPeerState(s, state) })
		},
		OnRemoteAudio: c.sink,
	})
	if err != nil {
		c.log.Error().Err(err).Msg("No voice connection")
		return
	}
	peer.SetMuted(true)
	s.peer = peer
	c.session = s
	c.log.Info().Msgf("Voice with %v for game %v as %v", remote, gameId, r.kind())

	r.start(c, s)
	if early := c.early; early != nil {
		c.early = nil
		if early.GameId == gameId {
			r.offer(c, s, early)
		}
	}
	c.publish()
}

func (c *Coordinator) sendOffer(s *session, restart bool) {
	offer, err := s.peer.CreateOffer(restart)
	if err != nil {
		c.fail(s, "create offer", err)
		return
	}
	if err = s.peer.SetLocalDescription(offer); err != nil {
		c.fail(s, "local offer", err)
		return
	}
	s.state = HaveLocalOffer
	c.conn.Send(api.Offer, api.OfferMessage{Offer: &offer, To: s.remote, GameId: s.gameId})
}

// current returns the session of the game or nil.
func (c *Coordinator) current(gameId string) *session {
	s := c.session
	if s == nil || (gameId != "" && gameId != s.gameId) {
		return nil
	}
	return s
}

func (c *Coordinator) onOffer(in api.In) {
	msg := api.Unwrap[api.OfferMessage](in.Data)
	if msg == nil || msg.Offer == nil {
		c.malformed(in)
		return
	}
	if c.session == nil {
		c.early = msg
		c.log.Debug().Msgf("Offer from %v waits for game %v", msg.From, msg.GameId)
		return
	}
	s := c.current(msg.GameId)
	if s == nil {
		c.log.Debug().Msgf("Dropped an offer of game %v", msg.GameId)
		return
	}
	s.role.offer(c, s, msg)
	c.publish()
}

func (c *Coordinator) onAnswer(in api.In) {
	msg := api.Unwrap[api.AnswerMessage](in.Data)
	if msg == nil || msg.Answer == nil {
		c.malformed(in)
		return
	}
	s := c.current(msg.GameId)
	if s == nil {
		c.log.Debug().Msgf("Dropped an answer of game %v", msg.GameId)
		return
	}
	s.role.answer(c, s, msg)
	c.publish()
}

func (c *Coordinator) onRemoteCandidate(in api.In) {
	msg := api.Unwrap[api.IceCandidateMessage](in.Data)
	if msg == nil || msg.Candidate == nil {
		c.malformed(in)
		return
	}
	s := c.current(msg.GameId)
	if s == nil {
		c.log.Debug().Msgf("Dropped a candidate of game %v", msg.GameId)
		return
	}
	if !s.remoteSet {
		s.pending = append(s.pending, *msg.Candidate)
		c.metrics.IceQueued.Inc()
		return
	}
	c.addCandidate(s, *msg.Candidate)
}

// remoteDescriptionSet applies the held candidates in order.
func (c *Coordinator) remoteDescriptionSet(s *session) {
	s.remoteSet = true
	pending := s.pending
	s.pending = nil
	for _, candidate := range pending {
		c.addCandidate(s, candidate)
	}
}

func (c *Coordinator) addCandidate(s *session, candidate webrtc.ICECandidateInit) {
	if err := s.peer.AddICECandidate(candidate); err != nil {
		c.metrics.IceFailed.Inc()
		c.log.Warn().Err(err).Str("candidate", candidate.Candidate).Msg("Skipped ICE candidate")
		return
	}
	c.metrics.IceApplied.Inc()
}

func (c *Coordinator) onLocalCandidate(s *session, candidate webrtc.ICECandidateInit) {
	if c.session != s {
		return
	}
	c.conn.Send(api.IceCandidate, api.IceCandidateMessage{Candidate: &candidate, To: s.remote, GameId: s.gameId})
}

func (c *Coordinator) onPeerState(s *session, state webrtc.PeerConnectionState) {
	if c.session != s {
		return
	}
	switch state {
	case webrtc.PeerConnectionStateConnected:
		s.state = Connected
		s.degraded = false
		s.restarting = false
		c.log.Info().Msgf("Voice connected with %v", s.remote)
	case webrtc.PeerConnectionStateDisconnected:
		s.state = Disconnected
		s.degraded = true
		s.role.failed(c, s)
	case webrtc.PeerConnectionStateFailed:
		s.state = Failed
		s.degraded = true
		s.restarting = false
		s.role.failed(c, s)
	default:
		return
	}
	c.publish()
}

// fail marks the voice as degraded, the game goes on.
func (c *Coordinator) fail(s *session, step string, err error) {
	s.degraded = true
	c.log.Warn().Err(err).Msgf("Voice negotiation failed at %v", step)
}

// ToggleMute flips the local microphone and returns the new state.
func (c *Coordinator) ToggleMute() (muted bool, err error) {
	s := c.session
	if s == nil {
		return true, ErrNoPeer
	}
	muted = !s.peer.Muted()
	s.peer.SetMuted(muted)
	c.publish()
	return muted, nil
}

// WriteAudio sends a frame of the player's voice.
func (c *Coordinator) WriteAudio(data []byte, duration time.Duration) error {
	s := c.session
	if s == nil {
		return ErrNoPeer
	}
	return s.peer.WriteAudio(data, duration)
}

func (c *Coordinator) Snapshot() Snapshot {
	s := c.session
	if s == nil {
		return Snapshot{State: Closed, Muted: true}
	}
	return Snapshot{
		GameId:  s.gameId,
		State:   s.state,
		Role:    s.role.kind(),
		Muted:   s.peer.Muted(),
		Healthy: !s.degraded && s.state != Failed && s.state != Disconnected,
		Active:  true,
	}
}

// Close ends the voice of the current game. It's safe to call more than once.
func (c *Coordinator) Close() {
	c.early = nil
	s := c.session
	if s == nil {
		return
	}
	c.session = nil
	s.state = Closed
	s.pending = nil
	if err := s.peer.Close(); err != nil {
		c.log.Warn().Err(err).Msg("Voice close")
	}
	c.log.Info().Msgf("Voice of game %v is closed", s.gameId)
	c.publish()
}

func (c *Coordinator) malformed(in api.In) {
	c.metrics.Malformed.Inc()
	c.log.Warn().Msgf("Dropped %v without payload", in.Event)
}

func (c *Coordinator) publish() { c.hub.Publish(event.PeerSnapshot, c.Snapshot()) }
