package signaling

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chessduel/client/pkg/api"
	"github.com/chessduel/client/pkg/event"
	"github.com/chessduel/client/pkg/game"
	"github.com/chessduel/client/pkg/logger"
	"github.com/chessduel/client/pkg/loop"
	"github.com/chessduel/client/pkg/monitoring"
	pwebrtc "github.com/chessduel/client/pkg/network/webrtc"
	"github.com/jonboulle/clockwork"
	"github.com/pion/webrtc/v4"
)

type fakePeer struct {
	t          *testing.T
	handlers   pwebrtc.Handlers
	offers     []bool
	answers    int
	remote     []webrtc.SessionDescription
	candidates []string
	broken     map[string]bool
	muted      bool
	closed     int
	audio      int
}

func (p *fakePeer) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	p.offers = append(p.offers, iceRestart)
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%v", len(p.offers))}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.answers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (p *fakePeer) SetLocalDescription(webrtc.SessionDescription) error { return nil }

func (p *fakePeer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	p.remote = append(p.remote, sdp)
	return nil
}

func (p *fakePeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	if len(p.remote) == 0 {
		p.t.Errorf("candidate %v before the remote description", candidate.Candidate)
	}
	if p.broken[candidate.Candidate] {
		return errors.New("bad candidate")
	}
	p.candidates = append(p.candidates, candidate.Candidate)
	return nil
}

func (p *fakePeer) SetMuted(muted bool) { p.muted = muted }
func (p *fakePeer) Muted() bool         { return p.muted }
func (p *fakePeer) Close() error        { p.closed++; return nil }

func (p *fakePeer) WriteAudio([]byte, time.Duration) error {
	if !p.muted {
		p.audio++
	}
	return nil
}

type fakeSender struct{ sent []api.Out }

func (s *fakeSender) Send(tag api.Tag, data any) {
	s.sent = append(s.sent, api.Out{Event: tag, Data: data})
}

func (s *fakeSender) of(tag api.Tag) (out []any) {
	for _, o := range s.sent {
		if o.Event == tag {
			out = append(out, o.Data)
		}
	}
	return
}

type harness struct {
	loop  *loop.Loop
	hub   *event.Hub
	conn  *fakeSender
	c     *Coordinator
	mu    sync.Mutex
	peers []*fakePeer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	l := loop.New(clockwork.NewFakeClock(), logger.Nop())
	l.Run()
	t.Cleanup(l.Stop)
	h := &harness{loop: l, hub: event.NewHub(logger.Nop()), conn: &fakeSender{}}
	factory := func(handlers pwebrtc.Handlers) (PeerConnection, error) {
		p := &fakePeer{t: t, handlers: handlers, broken: map[string]bool{}}
		h.mu.Lock()
		h.peers = append(h.peers, p)
		h.mu.Unlock()
		return p, nil
	}
	h.c = New(l, h.hub, h.conn, factory, monitoring.NewTestMetrics(), logger.Nop())
	h.do(h.c.Start)
	t.Cleanup(func() { h.do(h.c.Stop) })
	return h
}

func (h *harness) do(fn func()) { h.loop.Call(fn) }

func (h *harness) peer() *fakePeer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peers[len(h.peers)-1]
}

func (h *harness) receive(t *testing.T, frame string) {
	t.Helper()
	in, err := api.Parse([]byte(frame))
	if err != nil {
		t.Fatalf("bad test frame %v: %v", frame, err)
	}
	h.do(func() { h.hub.Publish(string(in.Event), in) })
}

func (h *harness) snapshot() (s Snapshot) {
	h.do(func() { s = h.c.Snapshot() })
	return
}

const (
	answer    = `{"event":"ANSWER","data":{"answer":{"type":"answer","sdp":"a"},"from":"bob","game_id":"g1"}}`
	offer     = `{"event":"OFFER","data":{"offer":{"type":"offer","sdp":"o"},"from":"alice","game_id":"g1"}}`
	candidate = `{"event":"ICE_CANDIDATE","data":{"candidate":{"candidate":"%v"},"from":"bob","game_id":"g1"}}`
)

func TestInitiatorQueuesEarlyCandidates(t *testing.T) {
	h := newHarness(t)
	h.do(func() { h.c.Open("g1", "alice", "bob", "alice") })

	offers := h.conn.of(api.Offer)
	if len(offers) != 1 {
		t.Fatalf("%v offers sent", len(offers))
	}
	if o := offers[0].(api.OfferMessage); o.To != "bob" || o.GameId != "g1" || o.Offer == nil {
		t.Errorf("offer %+v", o)
	}
	if s := h.snapshot(); s.State != HaveLocalOffer || s.Role != Initiator {
		t.Errorf("snapshot %+v", s)
	}

	for _, c := range []string{"c1", "c2", "c3"} {
		h.receive(t, fmt.Sprintf(candidate, c))
	}
	if n := len(h.peer().candidates); n != 0 {
		t.Fatalf("%v candidates applied before the answer", n)
	}

	h.receive(t, answer)
	if got := strings.Join(h.peer().candidates, ","); got != "c1,c2,c3" {
		t.Errorf("applied %v", got)
	}
	if s := h.snapshot(); s.State != Stable || !s.Healthy {
		t.Errorf("snapshot %+v", s)
	}

	h.receive(t, fmt.Sprintf(candidate, "c4"))
	if got := strings.Join(h.peer().candidates, ","); got != "c1,c2,c3,c4" {
		t.Errorf("applied %v", got)
	}
}

func TestCandidateOrder(t *testing.T) {
	// c is a candidate, a is the answer
	tests := []string{"a c c c", "c a c c", "c c a c", "c c c a", "c c c c c a"}

	for _, test := range tests {
		t.Run(test, func(t *testing.T) {
			h := newHarness(t)
			h.do(func() { h.c.Open("g1", "alice", "bob", "alice") })

			var want []string
			for i, step := range strings.Fields(test) {
				if step == "a" {
					h.receive(t, answer)
					continue
				}
				name := fmt.Sprintf("c%v", i)
				want = append(want, name)
				h.receive(t, fmt.Sprintf(candidate, name))
			}
			if got := strings.Join(h.peer().candidates, ","); got != strings.Join(want, ",") {
				t.Errorf("applied %v, want %v", got, want)
			}
		})
	}
}

func TestBadCandidateDoesNotStopFlush(t *testing.T) {
	h := newHarness(t)
	h.do(func() { h.c.Open("g1", "alice", "bob", "alice") })
	h.peer().broken["c2"] = true

	for _, c := range []string{"c1", "c2", "c3"} {
		h.receive(t, fmt.Sprintf(candidate, c))
	}
	h.receive(t, answer)
	if got := strings.Join(h.peer().candidates, ","); got != "c1,c3" {
		t.Errorf("applied %v", got)
	}
}

func TestResponderAnswers(t *testing.T) {
	h := newHarness(t)
	h.do(func() { h.c.Open("g1", "bob", "alice", "alice") })

	if n := len(h.conn.of(api.Offer)); n != 0 {
		t.Fatalf("the responder has sent %v offers", n)
	}
	h.receive(t, `{"event":"ICE_CANDIDATE","data":{"candidate":{"candidate":"c1"},"from":"alice","game_id":"g1"}}`)
	h.receive(t, strings.Replace(offer, `"from":"alice"`, `"from":"alice@2"`, 1))

	answers := h.conn.of(api.Answer)
	if len(answers) != 1 {
		t.Fatalf("%v answers", len(answers))
	}
	if a := answers[0].(api.AnswerMessage); a.To != "alice@2" || a.GameId != "g1" || a.Answer == nil {
		t.Errorf("answer %+v", a)
	}
	if got := strings.Join(h.peer().candidates, ","); got != "c1" {
		t.Errorf("applied %v", got)
	}
	if s := h.snapshot(); s.State != Stable || s.Role != Responder {
		t.Errorf("snapshot %+v", s)
	}
}

func TestEarlyOfferIsKept(t *testing.T) {
	h := newHarness(t)
	h.receive(t, offer)
	h.do(func() { h.c.Open("g1", "bob", "alice", "alice") })

	if n := len(h.conn.of(api.Answer)); n != 1 {
		t.Errorf("%v answers to the early offer", n)
	}
}

func TestOtherGameIsDropped(t *testing.T) {
	h := newHarness(t)
	h.do(func() { h.c.Open("g1", "bob", "alice", "alice") })
	h.receive(t, strings.Replace(offer, "g1", "g2", 1))
	h.receive(t, strings.Replace(fmt.Sprintf(candidate, "c1"), "g1", "g2", 1))

	if n := len(h.conn.of(api.Answer)); n != 0 {
		t.Errorf("answered an offer of another game")
	}
	if s := h.snapshot(); s.State != StateNew {
		t.Errorf("state %v", s.State)
	}
}

func TestLocalCandidatesAreSent(t *testing.T) {
	h := newHarness(t)
	h.do(func() { h.c.Open("g1", "alice", "bob", "alice") })

	h.peer().handlers.OnICECandidate(webrtc.ICECandidateInit{Candidate: "local"})
	h.do(func() {})

	sent := h.conn.of(api.IceCandidate)
	if len(sent) != 1 {
		t.Fatalf("%v candidates sent", len(sent))
	}
	if m := sent[0].(api.IceCandidateMessage); m.To != "bob" || m.Candidate.Candidate != "local" || m.GameId != "g1" {
		t.Errorf("sent %+v", m)
	}
}

func TestIceRestart(t *testing.T) {
	tests := []struct {
		name       string
		firstMover string
		offers     []bool
	}{
		{"initiator restarts", "alice", []bool{false, true}},
		{"responder waits", "bob", nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := newHarness(t)
			h.do(func() { h.c.Open("g1", "alice", "bob", test.firstMover) })
			if test.firstMover == "alice" {
				h.receive(t, answer)
			} else {
				h.receive(t, strings.Replace(offer, `"from":"alice"`, `"from":"bob"`, 1))
			}
			h.peer().handlers.OnStateChange(webrtc.PeerConnectionStateConnected)
			h.peer().handlers.OnStateChange(webrtc.PeerConnectionStateDisconnected)
			h.peer().handlers.OnStateChange(webrtc.PeerConnectionStateDisconnected)
			h.do(func() {})

			got := h.peer().offers
			if fmt.Sprint(got) != fmt.Sprint(test.offers) {
				t.Errorf("offers %v, want %v", got, test.offers)
			}
			if s := h.snapshot(); s.Healthy {
				t.Errorf("healthy while disconnected")
			}
		})
	}
}

func TestToggleMute(t *testing.T) {
	h := newHarness(t)
	var err error
	h.do(func() { _, err = h.c.ToggleMute() })
	if !errors.Is(err, ErrNoPeer) {
		t.Errorf("toggle without a peer: %v", err)
	}

	h.do(func() { h.c.Open("g1", "alice", "bob", "alice") })
	if s := h.snapshot(); !s.Muted {
		t.Errorf("not muted from the start")
	}
	var muted bool
	h.do(func() { muted, err = h.c.ToggleMute() })
	if err != nil || muted || h.peer().muted {
		t.Errorf("toggle: muted %v, err %v", muted, err)
	}
	if n := len(h.peer().offers); n != 1 {
		t.Errorf("mute has renegotiated, %v offers", n)
	}
}

func TestVoiceAudio(t *testing.T) {
	h := newHarness(t)
	var err error
	h.do(func() { err = h.c.WriteAudio([]byte{1}, 20*time.Millisecond) })
	if !errors.Is(err, ErrNoPeer) {
		t.Errorf("audio without a peer: %v", err)
	}

	h.do(func() {
		h.c.SetAudioSink(func(*webrtc.TrackRemote) {})
		h.c.Open("g1", "alice", "bob", "alice")
	})
	if h.peer().handlers.OnRemoteAudio == nil {
		t.Errorf("no sink for the remote voice")
	}
	frame := func() {
		h.do(func() { err = h.c.WriteAudio([]byte{1}, 20*time.Millisecond) })
		if err != nil {
			t.Errorf("audio: %v", err)
		}
	}
	frame()
	h.do(func() { _, _ = h.c.ToggleMute() })
	frame()
	if n := h.peer().audio; n != 1 {
		t.Errorf("%v frames sent, want the unmuted one", n)
	}
}

func TestFollowsGame(t *testing.T) {
	h := newHarness(t)
	g := &game.Session{Id: "g1", Local: "alice", Remote: "bob", FirstMover: "alice"}
	h.do(func() { h.hub.Publish(event.GameSnapshot, game.Snapshot{Game: g}) })
	h.do(func() { h.hub.Publish(event.GameSnapshot, game.Snapshot{Game: g}) })
	if s := h.snapshot(); !s.Active || s.GameId != "g1" {
		t.Fatalf("snapshot %+v", s)
	}
	h.mu.Lock()
	n := len(h.peers)
	h.mu.Unlock()
	if n != 1 {
		t.Errorf("%v peers for one game", n)
	}

	over := *g
	over.Result = &game.Outcome{Winner: "bob"}
	h.do(func() { h.hub.Publish(event.GameSnapshot, game.Snapshot{Game: &over}) })
	if s := h.snapshot(); s.Active {
		t.Errorf("voice is active after the game")
	}
}

func TestLocalTimeoutKeepsVoice(t *testing.T) {
	h := newHarness(t)
	g := &game.Session{Id: "g1", Local: "alice", Remote: "bob", FirstMover: "alice"}
	h.do(func() { h.hub.Publish(event.GameSnapshot, game.Snapshot{Game: g}) })

	timedOut := *g
	timedOut.Result = &game.Outcome{Winner: "bob", Reason: game.ReasonTimeout, Local: true}
	h.do(func() { h.hub.Publish(event.GameSnapshot, game.Snapshot{Game: &timedOut}) })
	if s := h.snapshot(); !s.Active {
		t.Fatalf("voice closed on a local timeout: %+v", s)
	}

	// the server took the last move after all
	h.do(func() { h.hub.Publish(event.GameSnapshot, game.Snapshot{Game: g}) })
	h.mu.Lock()
	n := len(h.peers)
	h.mu.Unlock()
	if n != 1 {
		t.Errorf("%v peers for one game", n)
	}
	if closed := h.peer().closed; closed != 0 {
		t.Errorf("peer closed %v times", closed)
	}

	over := timedOut
	over.Result = &game.Outcome{Winner: "bob", Reason: game.ReasonTimeout}
	h.do(func() { h.hub.Publish(event.GameSnapshot, game.Snapshot{Game: &over}) })
	if s := h.snapshot(); s.Active {
		t.Errorf("voice is active after the server's verdict")
	}
}

func TestCloseTwice(t *testing.T) {
	h := newHarness(t)
	h.do(func() { h.c.Open("g1", "alice", "bob", "alice") })
	h.do(h.c.Close)
	h.do(h.c.Close)

	if n := h.peer().closed; n != 1 {
		t.Errorf("closed %v times", n)
	}
	if s := h.snapshot(); s.Active || s.State != Closed {
		t.Errorf("snapshot %+v", s)
	}
}
