package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// peer owns one websocket connection. Only the writer goroutine writes to the
// connection once the peer is started.
type peer struct {
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func newPeer(conn *websocket.Conn, cfg Config) *peer {
	queue := cfg.SendQueue
	if queue <= 0 {
		queue = 1
	}

	conn.SetReadLimit(cfg.MaxMessageSize)

	return &peer{
		conn:         conn,
		send:         make(chan []byte, queue),
		done:         make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
	}
}

// enqueue hands a frame to the writer.
func (p *peer) enqueue(frame []byte) error {
	select {
	case <-p.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case p.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (p *peer) writeLoop(onError func()) {
	for {
		select {
		case <-p.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = p.conn.WriteControl(websocket.CloseMessage, msg,
				time.Now().Add(p.writeTimeout))
			_ = p.conn.Close()

			return
		case frame := <-p.send:
			if p.writeTimeout > 0 {
				_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
			}

			if err := p.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				onError()
				_ = p.conn.Close()

				return
			}
		}
	}
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}
