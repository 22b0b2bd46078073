package config

import "time"

type Monitoring struct {
	Port             int    `default:"6601"`
	URLPrefix        string `json:"url_prefix"`
	MetricEnabled    bool   `json:"metric_enabled"`
	ProfilingEnabled bool   `json:"profiling_enabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

type Server struct {
	Address      string        `default:"ws://localhost:8000/ws"`
	DialTimeout  time.Duration `default:"10s"`
	WriteTimeout time.Duration `default:"10s"`
}

type Heartbeat struct {
	Interval time.Duration `default:"25s"`
}

// Reconnect configures the single backoff policy of the server connection.
type Reconnect struct {
	BaseDelay   time.Duration `default:"1s"`
	Multiplier  float64       `default:"2"`
	MaxDelay    time.Duration `default:"30s"`
	MaxAttempts int           `default:"5"`
}

type Clock struct {
	Tick time.Duration `default:"100ms"`
}

type Logger struct {
	Debug   bool
	Console bool `default:"true"`
	NoColor bool
}
