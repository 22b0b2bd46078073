package config

import (
	"os"
	"testing"
	"time"
)

func TestConfigEnv(t *testing.T) {
	_ = os.Setenv("DUEL_PLAYER_NAME", "magnus")
	_ = os.Setenv("DUEL_RECONNECT_MAXATTEMPTS", "7")
	defer func() { _ = os.Unsetenv("DUEL_PLAYER_NAME") }()
	defer func() { _ = os.Unsetenv("DUEL_RECONNECT_MAXATTEMPTS") }()

	var out Config
	if err := LoadConfigEnv(&out); err != nil {
		t.Fatal(err)
	}
	if out.Player.Name != "magnus" {
		t.Errorf("player name %v is not magnus", out.Player.Name)
	}
	if out.Reconnect.MaxAttempts != 7 {
		t.Errorf("max attempts %v is not 7", out.Reconnect.MaxAttempts)
	}
}

func TestConfigDefaults(t *testing.T) {
	var out Config
	if err := LoadConfigEnv(&out); err != nil {
		t.Fatal(err)
	}
	if out.Reconnect.BaseDelay != time.Second || out.Reconnect.MaxDelay != 30*time.Second {
		t.Errorf("unexpected backoff defaults %+v", out.Reconnect)
	}
	if out.Clock.Tick != 100*time.Millisecond {
		t.Errorf("unexpected tick %v", out.Clock.Tick)
	}
	if len(out.Webrtc.Servers()) == 0 {
		t.Errorf("no default ICE servers")
	}
}

func TestWebrtcValidate(t *testing.T) {
	tests := []struct {
		name    string
		servers []IceServer
		wantErr bool
	}{
		{name: "stun", servers: []IceServer{{Urls: "stun:localhost:3478"}}},
		{name: "turn without credentials", servers: []IceServer{{Urls: "turn:localhost:3478"}}, wantErr: true},
		{name: "turn", servers: []IceServer{{Urls: "turns:localhost:3478", Username: "u", Credential: "c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Webrtc{IceServers: tt.servers}
			if err := w.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
