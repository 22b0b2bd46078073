package signaling

import (
	"time"

	"github.com/chessduel/client/pkg/logger"
	pwebrtc "github.com/chessduel/client/pkg/network/webrtc"
	"github.com/pion/webrtc/v4"
)

// PeerConnection is the voice connection under negotiation.
type PeerConnection interface {
	CreateOffer(iceRestart bool) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(sdp webrtc.SessionDescription) error
	SetRemoteDescription(sdp webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	SetMuted(muted bool)
	Muted() bool
	// WriteAudio sends an encoded Opus frame, it's dropped while muted.
	WriteAudio(data []byte, duration time.Duration) error
	Close() error
}

// PeerFactory makes a new connection for each game.
// The handlers may be called from any goroutine.
type PeerFactory func(h pwebrtc.Handlers) (PeerConnection, error)

// PionFactory makes pion peers.
func PionFactory(api *pwebrtc.ApiFactory, log *logger.Logger) PeerFactory {
	return func(h pwebrtc.Handlers) (PeerConnection, error) {
		peer, err := pwebrtc.NewPeer(api, h, log.Module("peer"))
		if err != nil {
			return nil, err
		}
		return peer, nil
	}
}
