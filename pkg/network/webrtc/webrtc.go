package webrtc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/chessduel/client/pkg/logger"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// Peer is a voice-only peer connection with one outbound audio track.
// It's muted from the start, muting only gates the outbound samples
// and never touches the negotiation.
type Peer struct {
	conn  *webrtc.PeerConnection
	audio *webrtc.TrackLocalStaticSample
	log   *logger.Logger
	muted atomic.Bool
	once  sync.Once
}

type Handlers struct {
	OnICECandidate func(candidate webrtc.ICECandidateInit)
	OnStateChange  func(state webrtc.PeerConnectionState)
	// OnRemoteAudio gets the opponent's voice track, the track is drained
	// and dropped without it.
	OnRemoteAudio func(track *webrtc.TrackRemote)
}

func NewPeer(api *ApiFactory, h Handlers, log *logger.Logger) (*Peer, error) {
	conn, err := api.NewPeer()
	if err != nil {
		return nil, err
	}
	p := &Peer{conn: conn, log: log}
	p.muted.Store(true)

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "voice")
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	sender, err := conn.AddTrack(audio)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// Read incoming RTCP packets
	go func() {
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, rtcpErr := sender.Read(rtcpBuf); rtcpErr != nil {
				return
			}
		}
	}()
	p.audio = audio
	p.log.Debug().Msgf("Added [%s] track", audio.Codec().MimeType)

	conn.OnICECandidate(func(ice *webrtc.ICECandidate) {
		// ICE gathering finish condition
		if ice == nil {
			p.log.Debug().Msg("ICE gathering was complete probably")
			return
		}
		candidate := ice.ToJSON()
		p.log.Debug().Str("candidate", candidate.Candidate).Msg("ICE")
		if h.OnICECandidate != nil {
			h.OnICECandidate(candidate)
		}
	})
	conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.log.Debug().Str(".state", state.String()).Msg("Peer")
		if h.OnStateChange != nil {
			h.OnStateChange(state)
		}
	})
	conn.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.log.Info().Msgf("Remote [%s] track", remote.Codec().MimeType)
		if h.OnRemoteAudio != nil {
			h.OnRemoteAudio(remote)
			return
		}
		buf := make([]byte, 1500)
		for {
			if _, _, err := remote.Read(buf); err != nil {
				return
			}
		}
	})
	return p, nil
}

func (p *Peer) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	return p.conn.CreateOffer(&webrtc.OfferOptions{ICERestart: iceRestart})
}

func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) { return p.conn.CreateAnswer(nil) }

func (p *Peer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return p.conn.SetLocalDescription(sdp)
}

func (p *Peer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	if err := p.conn.SetRemoteDescription(sdp); err != nil {
		p.log.Error().Err(err).Msg("Set remote description from peer failed")
		return err
	}
	p.log.Debug().Msg("Set Remote Description")
	return nil
}

func (p *Peer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	if err := p.conn.AddICECandidate(candidate); err != nil {
		return err
	}
	p.log.Debug().Str("candidate", candidate.Candidate).Msg("Ice")
	return nil
}

func (p *Peer) SetMuted(muted bool) { p.muted.Store(muted) }
func (p *Peer) Muted() bool         { return p.muted.Load() }

// WriteAudio sends an encoded Opus frame unless muted.
func (p *Peer) WriteAudio(data []byte, duration time.Duration) error {
	if p.muted.Load() {
		return nil
	}
	return p.audio.WriteSample(media.Sample{Data: data, Duration: duration})
}

func (p *Peer) Close() (err error) {
	p.once.Do(func() {
		if p.conn.ConnectionState() != webrtc.PeerConnectionStateClosed {
			err = p.conn.Close()
		}
		p.log.Debug().Msg("WebRTC stop")
	})
	return
}
