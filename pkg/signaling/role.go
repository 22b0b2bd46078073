package signaling

import "github.com/chessduel/client/pkg/api"

// role is the side of the negotiation, fixed for the session.
// The first mover offers, the other side answers.
type role interface {
	kind() Role
	start(c *Coordinator, s *session)
	offer(c *Coordinator, s *session, msg *api.OfferMessage)
	answer(c *Coordinator, s *session, msg *api.AnswerMessage)
	failed(c *Coordinator, s *session)
}

type initiator struct{}

func (initiator) kind() Role { return Initiator }

func (initiator) start(c *Coordinator, s *session) { c.sendOffer(s, false) }

func (initiator) offer(c *Coordinator, _ *session, msg *api.OfferMessage) {
	c.log.Warn().Msgf("Dropped an offer from %v, we offer ourselves", msg.From)
}

func (initiator) answer(c *Coordinator, s *session, msg *api.AnswerMessage) {
	if s.state != HaveLocalOffer {
		c.log.Warn().Msgf("Dropped an answer in %v state", s.state)
		return
	}
	if err := s.peer.SetRemoteDescription(*msg.Answer); err != nil {
		c.fail(s, "answer", err)
		return
	}
	s.restarting = false
	s.state = Stable
	c.remoteDescriptionSet(s)
}

// failed restarts ICE with a fresh offer.
func (initiator) failed(c *Coordinator, s *session) {
	if s.restarting {
		return
	}
	s.restarting = true
	c.metrics.IceRestarts.Inc()
	c.log.Info().Msgf("ICE restart for game %v", s.gameId)
	c.sendOffer(s, true)
}

type responder struct{}

func (responder) kind() Role { return Responder }

func (responder) start(*Coordinator, *session) {}

func (responder) offer(c *Coordinator, s *session, msg *api.OfferMessage) {
	if err := s.peer.SetRemoteDescription(*msg.Offer); err != nil {
		c.fail(s, "offer", err)
		return
	}
	s.state = HaveRemoteOffer
	c.remoteDescriptionSet(s)

	answer, err := s.peer.CreateAnswer()
	if err != nil {
		c.fail(s, "create answer", err)
		return
	}
	if err = s.peer.SetLocalDescription(answer); err != nil {
		c.fail(s, "local answer", err)
		return
	}
	to := msg.From
	if to == "" {
		to = s.remote
	}
	c.conn.Send(api.Answer, api.AnswerMessage{Answer: &answer, To: to, GameId: s.gameId})
	s.state = Stable
}

func (responder) answer(c *Coordinator, _ *session, msg *api.AnswerMessage) {
	c.log.Warn().Msgf("Dropped an answer from %v, we answer ourselves", msg.From)
}

// failed waits for the initiator to offer again.
func (responder) failed(c *Coordinator, s *session) {
	c.log.Info().Msgf("Waiting for a new offer from %v", s.remote)
}
