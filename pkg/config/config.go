package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Config is the configuration of the duel client.
type Config struct {
	Player     Player
	Game       Game
	Server     Server
	Heartbeat  Heartbeat
	Reconnect  Reconnect
	Clock      Clock
	Webrtc     Webrtc
	Monitoring Monitoring
	Logger     Logger
}

// Player is the session-scoped identity supplied from outside the client.
// Opponent and FirstMover fill in a game that is rejoined after a restart.
type Player struct {
	Name       string `default:"Guest"`
	Opponent   string
	FirstMover string
}

// Game holds the time control asked for in matchmaking.
type Game struct {
	TotalTime time.Duration `default:"10m"`
	Increment time.Duration `default:"0s"`
}

// NewConfig loads the configuration from a file at the path (optional)
// and applies the defaults and environment overrides.
func NewConfig(path string) (conf Config, err error) {
	if err = LoadConfig(&conf, path); err != nil {
		return
	}
	err = conf.Webrtc.Validate()
	return
}

// WithFlags binds command line flags over the loaded values.
func (c *Config) WithFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Player.Name, "player", c.Player.Name, "Local player name")
	fs.StringVar(&c.Player.Opponent, "opponent", c.Player.Opponent, "Opponent of a rejoined game")
	fs.StringVar(&c.Player.FirstMover, "first-mover", c.Player.FirstMover, "Player who moves first in a rejoined game")
	fs.StringVar(&c.Server.Address, "server", c.Server.Address, "Game server websocket address")
	fs.DurationVar(&c.Game.TotalTime, "time", c.Game.TotalTime, "Total time per player")
	fs.DurationVar(&c.Game.Increment, "increment", c.Game.Increment, "Increment per move")
	fs.BoolVar(&c.Logger.Debug, "debug", c.Logger.Debug, "Debug logging")
	fs.BoolVar(&c.Monitoring.MetricEnabled, "metrics", c.Monitoring.MetricEnabled, "Expose Prometheus metrics")
}
