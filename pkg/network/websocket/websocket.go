package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chessduel/client/pkg/logger"
	"github.com/chessduel/client/pkg/network"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var (
	ErrClosed     = errors.New("websocket closed")
	ErrBufferFull = errors.New("websocket send buffer is full")
)

type Options struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

func (o *Options) defaults() {
	if o.DialTimeout == 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = 10 * time.Second
	}
}

// WS is a client side websocket connection.
// All reads and writes are serialized through two goroutines.
type WS struct {
	id   network.Uid
	conn deadlinedConn
	send chan []byte
	log  *logger.Logger

	onMessage func(message []byte)
	onClose   func(err error)

	quit     chan struct{}
	done     chan struct{}
	listen   sync.Once
	stop     sync.Once
	shutdown sync.Once
}

// Dial opens a new connection to the address.
// Blocks until the handshake is over or the context is done.
func Dial(ctx context.Context, address string, opts Options, log *logger.Logger) (*WS, error) {
	opts.defaults()
	dialer := websocket.Dialer{HandshakeTimeout: opts.DialTimeout, Proxy: websocket.DefaultDialer.Proxy}
	conn, _, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, err
	}
	id := network.NewUid()
	return &WS{
		id:   id,
		conn: deadlinedConn{sock: conn, wt: opts.WriteTimeout},
		send: make(chan []byte, sendBufferSize),
		log:  log.Extend(log.With().Str(logger.ClientField, id.Short())),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}, nil
}

// Listen starts the read and write pumps.
// The onClose callback is called exactly once when the connection is over,
// err is nil if the connection was closed with Close.
func (ws *WS) Listen(onMessage func(message []byte), onClose func(err error)) {
	ws.listen.Do(func() {
		ws.onMessage, ws.onClose = onMessage, onClose
		go ws.writer()
		go ws.reader()
	})
}

// reader pumps messages from the websocket connection to the onMessage callback.
func (ws *WS) reader() {
	ws.conn.setup(func(conn *websocket.Conn) { conn.SetReadLimit(maxMessageSize) })
	for {
		message, err := ws.conn.read()
		if err != nil {
			select {
			case <-ws.quit:
				err = nil
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					err = ErrClosed
				}
			}
			ws.close(err)
			return
		}
		ws.log.Debug().Str(logger.DirectionField, "←").Msg(string(message))
		ws.onMessage(message)
	}
}

// writer pumps messages from the send channel to the websocket connection.
func (ws *WS) writer() {
	for {
		select {
		case message := <-ws.send:
			ws.log.Debug().Str(logger.DirectionField, "→").Msg(string(message))
			if err := ws.conn.write(websocket.TextMessage, message); err != nil {
				ws.close(err)
				return
			}
		case <-ws.quit:
			_ = ws.conn.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			ws.close(nil)
			return
		case <-ws.done:
			return
		}
	}
}

// Write queues the message for sending, never blocks.
func (ws *WS) Write(data []byte) error {
	select {
	case <-ws.done:
		return ErrClosed
	case <-ws.quit:
		return ErrClosed
	default:
	}
	select {
	case ws.send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close sends the close frame and shuts the connection.
func (ws *WS) Close() {
	ws.stop.Do(func() {
		ws.log.Debug().Str(logger.DirectionField, "x").Msg("Close")
		close(ws.quit)
	})
	// never listened, no pumps to finish the job
	ws.listen.Do(func() { ws.close(nil) })
}

func (ws *WS) close(err error) {
	ws.shutdown.Do(func() {
		close(ws.done)
		_ = ws.conn.close()
		if ws.onClose != nil {
			ws.onClose(err)
		}
	})
}

func (ws *WS) Id() network.Uid { return ws.id }

// Done is closed when the connection is over.
func (ws *WS) Done() <-chan struct{} { return ws.done }
