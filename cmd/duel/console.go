package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chessduel/client/pkg/api"
	"github.com/chessduel/client/pkg/chess"
	"github.com/chessduel/client/pkg/config"
	"github.com/chessduel/client/pkg/connection"
	"github.com/chessduel/client/pkg/event"
	"github.com/chessduel/client/pkg/game"
	"github.com/chessduel/client/pkg/session"
	"github.com/chessduel/client/pkg/signaling"
)

const help = `commands:
  find               play a random opponent
  create             open a private game
  join <id>          join a private game
  move <san> | <san> make a move
  board              show the board
  mute               toggle the microphone
  reconnect [id]     rejoin a game
  leave              leave the game
  quit`

type command struct {
	name string
	arg  string
}

func parse(line string) (command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, false
	}
	cmd := command{name: strings.ToLower(fields[0])}
	if len(fields) > 1 {
		cmd.arg = fields[1]
	}
	switch cmd.name {
	case "find", "create", "join", "move", "board", "mute", "reconnect", "leave", "quit", "help":
		return cmd, true
	}
	// a bare move
	return command{name: "move", arg: fields[0]}, true
}

// console prints the client events and runs the typed commands.
type console struct {
	ctrl *session.Controller
	conf config.Config
	out  io.Writer

	mu       sync.Mutex
	lastGame string
	moves    int
	over     bool
	voice    signaling.Snapshot
}

func newConsole(ctrl *session.Controller, conf config.Config, out io.Writer) *console {
	return &console{ctrl: ctrl, conf: conf, out: out}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format+"\n", args...)
}

// Watch subscribes to the events worth showing.
func (c *console) Watch() {
	c.ctrl.Subscribe(event.ConnectionStatus, func(data any) {
		s, ok := data.(connection.Status)
		if !ok {
			return
		}
		switch {
		case s.Terminal:
			c.printf("! disconnected, type reconnect to try again")
		case s.Delay > 0:
			c.printf("! reconnecting in %v (%v/%v)", s.Delay, s.Attempt, c.conf.Reconnect.MaxAttempts)
		case s.State == connection.Open:
			c.printf("* connected")
		}
	})
	c.ctrl.Subscribe(event.GameNotice, func(data any) {
		if n, ok := data.(game.Notice); ok {
			if n.GameId != "" && n.Event == api.GameCreated {
				c.printf("* %v: %v", n.Message, n.GameId)
				return
			}
			c.printf("* %v", n.Message)
		}
	})
	c.ctrl.Subscribe(event.GameSnapshot, func(data any) {
		if s, ok := data.(game.Snapshot); ok {
			c.onGame(s)
		}
	})
	c.ctrl.Subscribe(event.PeerSnapshot, func(data any) {
		if s, ok := data.(signaling.Snapshot); ok {
			c.onVoice(s)
		}
	})
}

func (c *console) onGame(s game.Snapshot) {
	g := s.Game
	if g == nil {
		return
	}
	c.mu.Lock()
	fresh := g.Id != c.lastGame
	moved := len(g.History) != c.moves
	ended := g.Over() && !c.over
	c.lastGame, c.moves, c.over = g.Id, len(g.History), g.Over()
	c.mu.Unlock()

	if fresh {
		c.printf("* game %v: %v vs %v, %v moves first", g.Id, g.Local, g.Remote, g.FirstMover)
	}
	if moved && len(g.History) > 0 {
		m := g.History[len(g.History)-1]
		c.printf("%v. %v %v  [%v %v | %v %v]", len(g.History), m.Mover, m.SAN,
			g.Local, clock(g.Clocks[g.Local]), g.Remote, clock(g.Clocks[g.Remote]))
	}
	if ended {
		c.printf("* game over: %v, winner %q", g.Result.Reason, g.Result.Winner)
	}
}

func (c *console) onVoice(s signaling.Snapshot) {
	c.mu.Lock()
	prev := c.voice
	c.voice = s
	c.mu.Unlock()
	if prev.Healthy != s.Healthy && s.Active && !s.Healthy {
		c.printf("! voice is degraded")
	}
	if prev.State != s.State && s.State == signaling.Connected {
		c.printf("* voice connected")
	}
}

// Read runs the commands from r until quit or EOF.
func (c *console) Read(r io.Reader) <-chan struct{} {
	quit := make(chan struct{})
	go func() {
		defer close(quit)
		c.printf("%v", help)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			cmd, ok := parse(scanner.Text())
			if !ok {
				continue
			}
			if cmd.name == "quit" {
				return
			}
			if err := c.run(cmd); err != nil {
				c.printf("! %v", err)
			}
		}
	}()
	return quit
}

func (c *console) run(cmd command) error {
	total, inc := c.conf.Game.TotalTime, c.conf.Game.Increment
	switch cmd.name {
	case "find":
		return c.ctrl.FindGame(total, inc)
	case "create":
		return c.ctrl.CreateGame(total, inc)
	case "join":
		if cmd.arg == "" {
			return fmt.Errorf("join needs a game id")
		}
		return c.ctrl.JoinGame(cmd.arg)
	case "move":
		return c.ctrl.RequestMove(cmd.arg)
	case "mute":
		muted, err := c.ctrl.ToggleMute()
		if err == nil {
			c.printf("* muted: %v", muted)
		}
		return err
	case "reconnect":
		id := cmd.arg
		if id == "" {
			c.mu.Lock()
			id = c.lastGame
			c.mu.Unlock()
		}
		if id == "" {
			return fmt.Errorf("reconnect needs a game id")
		}
		return c.ctrl.RequestReconnect(id)
	case "leave":
		return c.ctrl.Leave()
	case "board":
		g := c.ctrl.GameSnapshot().Game
		if g == nil {
			return game.ErrNoGame
		}
		text, err := chess.Draw(g.Board.FEN)
		if err != nil {
			return err
		}
		c.printf("%v", text)
	case "help":
		c.printf("%v", help)
	}
	return nil
}

func clock(d time.Duration) string {
	d = d.Round(100 * time.Millisecond)
	return fmt.Sprintf("%d:%04.1f", int(d.Minutes()), (d % time.Minute).Seconds())
}
