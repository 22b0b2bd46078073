package main

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		cmd  command
		ok   bool
	}{
		{"", command{}, false},
		{"   ", command{}, false},
		{"find", command{name: "find"}, true},
		{"JOIN abc", command{name: "join", arg: "abc"}, true},
		{"move Nf3", command{name: "move", arg: "Nf3"}, true},
		{"e4", command{name: "move", arg: "e4"}, true},
		{"reconnect g1 extra", command{name: "reconnect", arg: "g1"}, true},
	}
	for _, test := range tests {
		cmd, ok := parse(test.line)
		if cmd != test.cmd || ok != test.ok {
			t.Errorf("parse(%q) = %+v %v, want %+v %v", test.line, cmd, ok, test.cmd, test.ok)
		}
	}
}

func TestClock(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00.0"},
		{90 * time.Second, "1:30.0"},
		{10*time.Minute + 5500*time.Millisecond, "10:05.5"},
	}
	for _, test := range tests {
		if got := clock(test.d); got != test.want {
			t.Errorf("clock(%v) = %v, want %v", test.d, got, test.want)
		}
	}
}
