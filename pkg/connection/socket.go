package connection

import (
	"context"

	"github.com/chessduel/client/pkg/logger"
	"github.com/chessduel/client/pkg/network/websocket"
)

// Socket is one physical connection to the server.
type Socket interface {
	// Listen starts delivery. The onClose callback must be called once
	// when the socket is over, with nil error after Close.
	Listen(onMessage func(frame []byte), onClose func(err error))
	Write(frame []byte) error
	Close()
}

type Dialer interface {
	Dial(ctx context.Context, address string) (Socket, error)
}

type DialFunc func(ctx context.Context, address string) (Socket, error)

func (f DialFunc) Dial(ctx context.Context, address string) (Socket, error) { return f(ctx, address) }

// WebsocketDialer connects with gorilla websockets.
func WebsocketDialer(opts websocket.Options, log *logger.Logger) Dialer {
	return DialFunc(func(ctx context.Context, address string) (Socket, error) {
		ws, err := websocket.Dial(ctx, address, opts, log)
		if err != nil {
			return nil, err
		}
		return ws, nil
	})
}
