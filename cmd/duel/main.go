package main

import (
	"context"
	"os"
	"time"

	"github.com/chessduel/client/pkg/chess"
	"github.com/chessduel/client/pkg/config"
	"github.com/chessduel/client/pkg/connection"
	"github.com/chessduel/client/pkg/logger"
	"github.com/chessduel/client/pkg/monitoring"
	"github.com/chessduel/client/pkg/network"
	"github.com/chessduel/client/pkg/network/webrtc"
	"github.com/chessduel/client/pkg/network/websocket"
	dos "github.com/chessduel/client/pkg/os"
	"github.com/chessduel/client/pkg/service"
	"github.com/chessduel/client/pkg/session"
	"github.com/chessduel/client/pkg/signaling"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf, err := config.NewConfig(configPath(os.Args[1:]))
	if err != nil {
		panic(err)
	}
	flag.StringP("config", "c", "", "Path to the config file")
	conf.WithFlags(flag.CommandLine)
	flag.Parse()

	log := logger.New(conf.Logger.Debug)
	if conf.Logger.Console {
		log = logger.NewConsole(conf.Logger.Debug, "duel", conf.Logger.NoColor)
	}
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	address, err := network.Address(conf.Server.Address).URL()
	if err != nil {
		log.Fatal().Err(err).Msg("server")
	}
	conf.Server.Address = address

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	api, err := webrtc.NewApiFactory(conf.Webrtc, log, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc")
	}

	ctrl := session.New(conf, session.Deps{
		Clock: clockwork.NewRealClock(),
		Dialer: connection.WebsocketDialer(websocket.Options{
			DialTimeout:  conf.Server.DialTimeout,
			WriteTimeout: conf.Server.WriteTimeout,
		}, log),
		Peers:       signaling.PionFactory(api, log),
		Validator:   chess.New(),
		Metrics:     metrics,
		RemoteAudio: listen(log.Module("voice")),
	}, log)

	var services service.Group
	if conf.Monitoring.IsEnabled() {
		services.Add(monitoring.New(conf.Monitoring, reg, log))
	}
	services.Add(ctrl)
	services.Start()

	ui := newConsole(ctrl, conf, os.Stdout)
	ui.Watch()
	quit := ui.Read(os.Stdin)

	select {
	case <-dos.ExpectTermination():
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := services.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}

// configPath finds the config flag before the rest of the flags
// are bound over the loaded values.
func configPath(args []string) string {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	path := fs.StringP("config", "c", "", "")
	_ = fs.Parse(args)
	return *path
}
