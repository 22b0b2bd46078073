package network

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultPath is where the game server accepts websockets.
const DefaultPath = "/ws"

var ErrNoAddress = errors.New("no address")

// Address is a game server address, either a full URL or host[:port].
type Address string

// URL returns the websocket URL of the address.
// Plain HTTP schemes are switched to their websocket pairs.
func (a Address) URL() (string, error) {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return "", ErrNoAddress
	}
	if !strings.Contains(s, "://") {
		s = "ws://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("bad address %q: %w", string(a), err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("bad address %q: unsupported scheme %v", string(a), u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("bad address %q: %w", string(a), ErrNoAddress)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultPath
	}
	return u.String(), nil
}
