package webrtc

import (
	"strings"
	"testing"

	"github.com/chessduel/client/pkg/config"
	"github.com/chessduel/client/pkg/logger"
	"github.com/pion/webrtc/v4"
)

func newTestPeer(t *testing.T) *Peer {
	api, err := NewApiFactory(config.Webrtc{IceServers: []config.IceServer{}}, logger.Nop(), nil)
	if err != nil {
		t.Fatalf("api: %v", err)
	}
	peer, err := NewPeer(api, Handlers{}, logger.Nop())
	if err != nil {
		t.Fatalf("peer: %v", err)
	}
	t.Cleanup(func() { _ = peer.Close() })
	return peer
}

func TestPeerOffer(t *testing.T) {
	peer := newTestPeer(t)

	offer, err := peer.CreateOffer(false)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if offer.Type != webrtc.SDPTypeOffer {
		t.Errorf("wrong type %v", offer.Type)
	}
	if !strings.Contains(strings.ToLower(offer.SDP), "opus") {
		t.Errorf("no opus in the offer")
	}
	if err := peer.SetLocalDescription(offer); err != nil {
		t.Errorf("local description: %v", err)
	}
}

func TestPeerMute(t *testing.T) {
	peer := newTestPeer(t)

	if !peer.Muted() {
		t.Errorf("peer should start muted")
	}
	if err := peer.WriteAudio([]byte{1, 2, 3}, 0); err != nil {
		t.Errorf("muted write failed: %v", err)
	}
	peer.SetMuted(false)
	if peer.Muted() {
		t.Errorf("peer is still muted")
	}
}

func TestPeerCloseTwice(t *testing.T) {
	peer := newTestPeer(t)
	if err := peer.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := peer.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
