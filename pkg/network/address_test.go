package network

import "testing"

func TestAddressURL(t *testing.T) {
	tests := []struct {
		address string
		url     string
		err     bool
	}{
		{address: "ws://localhost:8000/ws", url: "ws://localhost:8000/ws"},
		{address: "localhost:8000", url: "ws://localhost:8000/ws"},
		{address: "https://chess.example.com", url: "wss://chess.example.com/ws"},
		{address: "http://10.0.0.1:9000/game", url: "ws://10.0.0.1:9000/game"},
		{address: " wss://chess.example.com/ws?v=2 ", url: "wss://chess.example.com/ws?v=2"},
		{address: "", err: true},
		{address: "ftp://chess.example.com", err: true},
		{address: "ws://", err: true},
	}
	for _, test := range tests {
		url, err := Address(test.address).URL()
		if (err != nil) != test.err {
			t.Errorf("%q: unexpected error %v", test.address, err)
			continue
		}
		if url != test.url {
			t.Errorf("%q: got %v, want %v", test.address, url, test.url)
		}
	}
}
