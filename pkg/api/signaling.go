package api

import "github.com/pion/webrtc/v4"

// Signaling payloads are relayed by the server between the two players.
// The sender fills in To, the server fills in From.
type (
	OfferMessage struct {
		Offer  *webrtc.SessionDescription `json:"offer"`
		From   string                     `json:"from,omitempty"`
		To     string                     `json:"to,omitempty"`
		GameId string                     `json:"game_id"`
	}
	AnswerMessage struct {
		Answer *webrtc.SessionDescription `json:"answer"`
		From   string                     `json:"from,omitempty"`
		To     string                     `json:"to,omitempty"`
		GameId string                     `json:"game_id"`
	}
	IceCandidateMessage struct {
		Candidate *webrtc.ICECandidateInit `json:"candidate"`
		From      string                   `json:"from,omitempty"`
		To        string                   `json:"to,omitempty"`
		GameId    string                   `json:"game_id"`
	}
)
