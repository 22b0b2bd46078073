// Package connection keeps one persistent connection to the game server.
//
// The manager queues frames until the connection is open, keeps it alive with
// heartbeats, reconnects with backoff while a game session is active and
// publishes every inbound frame on the event hub under its tag.
// All the methods must be called on the loop.
package connection

import (
	"context"
	"slices"
	"time"

	"github.com/chessduel/client/pkg/api"
	"github.com/chessduel/client/pkg/config"
	"github.com/chessduel/client/pkg/event"
	"github.com/chessduel/client/pkg/logger"
	"github.com/chessduel/client/pkg/loop"
	"github.com/chessduel/client/pkg/monitoring"
	"github.com/chessduel/client/pkg/network"
)

type Options struct {
	Reconnect   config.Reconnect
	Heartbeat   time.Duration
	DialTimeout time.Duration
}

type outbound struct {
	tag   api.Tag
	frame []byte
}

type session struct {
	id     string
	player string
}

type Manager struct {
	loop    *loop.Loop
	hub     *event.Hub
	dialer  Dialer
	log     *logger.Logger
	metrics *monitoring.Metrics
	opts    Options
	backoff *network.Backoff

	endpoint string
	state    State
	terminal bool
	sock     Socket
	// gen is the number of the current physical connection,
	// callbacks of the older ones are ignored.
	gen     uint64
	queue   []outbound
	session session
	// clog tags the lines of the current socket
	clog *logger.Logger

	heartbeat  *loop.Ticker
	retry      *loop.Timer
	cancelDial context.CancelFunc
}

func New(l *loop.Loop, hub *event.Hub, dialer Dialer, opts Options, m *monitoring.Metrics, log *logger.Logger) *Manager {
	r := opts.Reconnect
	return &Manager{
		loop:    l,
		hub:     hub,
		dialer:  dialer,
		log:     log.Module("conn"),
		clog:    log.Module("conn"),
		metrics: m,
		opts:    opts,
		backoff: network.NewBackoff(r.BaseDelay, r.Multiplier, r.MaxDelay, r.MaxAttempts),
	}
}

// Connect opens the connection, does nothing if it's open or opening.
func (m *Manager) Connect(endpoint string) {
	if m.state == Open || m.state == Connecting {
		return
	}
	m.endpoint = endpoint
	m.retry.Stop()
	m.retry = nil
	m.dial()
}

func (m *Manager) dial() {
	m.gen++
	gen, endpoint := m.gen, m.endpoint
	m.setState(Connecting, 0)

	timeout := m.opts.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	m.cancelDial = cancel
	m.log.Debug().Msgf("Dial %v", endpoint)
	go func() {
		sock, err := m.dialer.Dial(ctx, endpoint)
		if !m.loop.Post(func() { m.onDial(gen, sock, err) }) && sock != nil {
			sock.Close()
		}
		cancel()
	}()
}

func (m *Manager) onDial(gen uint64, sock Socket, err error) {
	if gen != m.gen || m.state != Connecting {
		if sock != nil {
			sock.Close()
		}
		return
	}
	m.cancelDial = nil
	if err != nil {
		m.log.Warn().Err(err).Msgf("No connection to %v", m.endpoint)
		m.onClose(gen, err)
		return
	}
	m.sock = sock
	id := network.NewUid()
	if s, ok := sock.(interface{ Id() network.Uid }); ok {
		id = s.Id()
	}
	m.clog = m.log.Extend(m.log.With().Str(logger.ClientField, id.Short()))
	// the callbacks only post, so the open handler below always runs
	// before the first frame of this socket
	sock.Listen(
		func(frame []byte) { m.loop.Post(func() { m.onMessage(gen, frame) }) },
		func(err error) { m.loop.Post(func() { m.onClose(gen, err) }) },
	)
	m.onOpen()
}

func (m *Manager) onOpen() {
	m.backoff.Reset()
	m.terminal = false
	m.setState(Open, 0)
	m.clog.Info().Msgf("Connected to %v", m.endpoint)

	// the session is announced before anything else queued
	if m.session.id != "" {
		if rq, err := m.outbound(api.Reconnect, m.resumeRequest()); err == nil {
			m.queue = append([]outbound{rq}, m.queue...)
		}
	}
	m.flush()

	if m.opts.Heartbeat > 0 {
		m.heartbeat = m.loop.Every(m.opts.Heartbeat, m.ping)
	}
}

func (m *Manager) onMessage(gen uint64, frame []byte) {
	if gen != m.gen {
		return
	}
	in, err := api.Parse(frame)
	if err != nil {
		m.metrics.Malformed.Inc()
		m.log.Warn().Err(err).Msgf("Dropped frame: %.64s", frame)
		return
	}
	m.metrics.FramesIn.WithLabelValues(string(in.Event)).Inc()
	m.clog.Debug().Str(logger.DirectionField, "←").Msgf("%v", in.Event)
	m.hub.Publish(string(in.Event), in)
}

func (m *Manager) onClose(gen uint64, err error) {
	if gen != m.gen {
		return
	}
	m.heartbeat.Stop()
	m.heartbeat = nil
	m.sock = nil

	if m.state == Closing || m.state == Closed || m.state == Idle {
		m.setState(Closed, 0)
		return
	}
	if err != nil {
		m.log.Warn().Err(err).Msg("Connection lost")
	}
	if m.session.id == "" {
		// nothing reconnects, so the queued requests would go out
		// whenever the next connection opens
		m.drop()
		m.setState(Closed, 0)
		return
	}
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	delay, ok := m.backoff.Next()
	if !ok {
		m.terminal = true
		m.metrics.Disconnects.Inc()
		m.log.Error().Msgf("Disconnected after %v reconnect attempts", m.backoff.Attempt())
		m.setState(Closed, 0)
		return
	}
	m.metrics.Reconnects.Inc()
	m.log.Info().Msgf("Reconnect attempt %v/%v in %v", m.backoff.Attempt(), m.backoff.MaxAttempts(), delay)
	m.setState(Closed, delay)
	m.retry = m.loop.AfterFunc(delay, func() {
		m.retry = nil
		m.dial()
	})
}

// Reconnect starts over the reconnect attempts, e.g. after the terminal disconnect.
func (m *Manager) Reconnect() {
	if m.state == Open || m.state == Connecting || m.endpoint == "" {
		return
	}
	m.retry.Stop()
	m.retry = nil
	m.backoff.Reset()
	m.terminal = false
	m.dial()
}

// Close shuts the connection for good, no reconnects after this.
func (m *Manager) Close() {
	m.session = session{}
	m.retry.Stop()
	m.retry = nil
	m.heartbeat.Stop()
	m.heartbeat = nil
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	switch m.state {
	case Open:
		m.setState(Closing, 0)
		m.sock.Close()
	case Connecting:
		m.gen++
		m.setState(Closed, 0)
	case Closed:
		if m.terminal || m.backoff.Attempt() > 0 {
			m.terminal = false
			m.backoff.Reset()
			m.setState(Closed, 0)
		}
	}
}

// Send transmits a frame if the connection is open or queues it otherwise.
// It never fails on a closed connection.
func (m *Manager) Send(tag api.Tag, data any) {
	out, err := m.outbound(tag, data)
	if err != nil {
		m.log.Error().Err(err).Msgf("Couldn't encode %v", tag)
		return
	}
	m.queue = append(m.queue, out)
	// an open connection retries the head of the queue first
	if m.state == Open {
		m.flush()
	}
	if n := len(m.queue); n > 0 {
		m.metrics.Queued.Set(float64(n))
		m.log.Debug().Msgf("Queued %v (%v)", tag, n)
	}
}

func (m *Manager) SendEnvelope(out api.Out) { m.Send(out.Event, out.Data) }

func (m *Manager) outbound(tag api.Tag, data any) (outbound, error) {
	frame, err := api.Out{Event: tag, Data: data}.Marshal()
	if err != nil {
		return outbound{}, err
	}
	return outbound{tag: tag, frame: frame}, nil
}

func (m *Manager) write(out outbound) bool {
	if m.sock == nil {
		return false
	}
	if err := m.sock.Write(out.frame); err != nil {
		m.log.Warn().Err(err).Msgf("Couldn't send %v, kept for later", out.tag)
		return false
	}
	m.metrics.FramesOut.WithLabelValues(string(out.tag)).Inc()
	m.clog.Debug().Str(logger.DirectionField, "→").Msgf("%v", out.tag)
	return true
}

// flush sends the queue in order, stops at the first failed write.
func (m *Manager) flush() {
	for len(m.queue) > 0 && m.state == Open {
		if !m.write(m.queue[0]) {
			break
		}
		m.queue[0] = outbound{}
		m.queue = m.queue[1:]
	}
	m.metrics.Queued.Set(float64(len(m.queue)))
}

// Drop removes the queued frames with the tags.
func (m *Manager) Drop(tags ...api.Tag) {
	kept := m.queue[:0]
	for _, out := range m.queue {
		if !slices.Contains(tags, out.tag) {
			kept = append(kept, out)
		}
	}
	clear(m.queue[len(kept):])
	m.queue = kept
	m.metrics.Queued.Set(float64(len(m.queue)))
}

func (m *Manager) drop() {
	if len(m.queue) == 0 {
		return
	}
	m.log.Warn().Msgf("Dropped %v queued frames, no connection", len(m.queue))
	clear(m.queue)
	m.queue = m.queue[:0]
	m.metrics.Queued.Set(0)
}

func (m *Manager) ping() {
	if m.state != Open {
		return
	}
	m.Send(api.Ping, nil)
}

// SetSession arms the reconnects for the game.
func (m *Manager) SetSession(id, player string) { m.session = session{id: id, player: player} }

// ClearSession disarms the reconnects, a scheduled attempt is dropped.
func (m *Manager) ClearSession() {
	m.session = session{}
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
		m.setState(Closed, 0)
	}
}

func (m *Manager) SessionId() string { return m.session.id }

func (m *Manager) resumeRequest() api.ReconnectRequest {
	return api.ReconnectRequest{PlayerName: m.session.player, GameId: m.session.id}
}

// Resume asks the server to replay the state of the session.
func (m *Manager) Resume() {
	if m.session.id == "" {
		return
	}
	m.Send(api.Reconnect, m.resumeRequest())
}

func (m *Manager) State() State { return m.state }

func (m *Manager) Status() Status {
	return Status{State: m.state, Attempt: m.backoff.Attempt(), Terminal: m.terminal}
}

func (m *Manager) Pending() int { return len(m.queue) }

func (m *Manager) setState(state State, delay time.Duration) {
	m.state = state
	status := m.Status()
	status.Delay = delay
	m.hub.Publish(event.ConnectionStatus, status)
}
