package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spacegame/netsync/message"
	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport"
)

// ErrProtocolMismatch is returned by Dial when the server runs a different
// protocol.
var ErrProtocolMismatch = errors.New("protocol mismatch")

// ErrSendQueueFull is returned by Flush when the connection cannot keep up.
var ErrSendQueueFull = errors.New("send queue full")

// ErrConnectionClosed is returned by Flush when the connection is already
// closed.
var ErrConnectionClosed = errors.New("connection closed")

// Client is a websocket connection to a server. It implements
// transport.Client.
type Client struct {
	cfg  Config
	id   transport.ConnID
	peer *peer

	lock      sync.Mutex
	connected bool
	inbox     map[transport.ChannelID]sim.Buffer
	events    sim.Buffer
	outbox    []outgoing
}

// Dial connects to a server and waits for the welcome frame.
func Dial(
	ctx context.Context,
	url string,
	fingerprint string,
	cfg Config,
) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}

	header := http.Header{}
	header.Set(ProtocolHeader, fingerprint)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusPreconditionFailed {
			return nil, fmt.Errorf("dial %s: %w", url, ErrProtocolMismatch)
		}

		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	id, err := readWelcome(ctx, conn, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("handshake with %s: %w", url, err)
	}

	c := &Client{
		cfg:       cfg,
		id:        id,
		peer:      newPeer(conn, cfg),
		connected: true,
		inbox:     make(map[transport.ChannelID]sim.Buffer),
		events:    sim.NewBuffer("WSClient.Events", 0),
	}
	c.events.Push(transport.Event{Kind: transport.Connected, Conn: id})

	go c.peer.writeLoop(c.Close)
	go c.readLoop()

	return c, nil
}

func readWelcome(
	ctx context.Context,
	conn *websocket.Conn,
	cfg Config,
) (transport.ConnID, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(cfg.HandshakeTimeout)
	}

	_ = conn.SetReadDeadline(deadline)
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return 0, err
	}

	flags, _, payload, err := decodeFrame(data, cfg.MaxMessageSize)
	if err != nil {
		return 0, err
	}

	if flags&flagControl == 0 {
		return 0, errors.New("expected a welcome frame")
	}

	var w welcome
	if err := message.Unmarshal(payload, &w); err != nil {
		return 0, err
	}

	return w.Conn, nil
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		_, data, err := c.peer.conn.ReadMessage()
		if err != nil {
			return
		}

		flags, ch, payload, err := decodeFrame(data, c.cfg.MaxMessageSize)
		if err != nil || flags&flagControl != 0 {
			return
		}

		c.lock.Lock()
		c.channel(ch).Push(payload)
		c.lock.Unlock()
	}
}

func (c *Client) channel(ch transport.ChannelID) sim.Buffer {
	buf, found := c.inbox[ch]
	if !found {
		buf = sim.NewBuffer(fmt.Sprintf("WSClient.Ch%d", ch), 0)
		c.inbox[ch] = buf
	}

	return buf
}

// ID returns the connection ID assigned by the server.
func (c *Client) ID() transport.ConnID {
	return c.id
}

// Connected tells if the connection is still open.
func (c *Client) Connected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.connected
}

// Send queues data for the server.
func (c *Client) Send(ch transport.ChannelID, data []byte) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.connected {
		return
	}

	c.outbox = append(c.outbox, outgoing{ch: ch, data: data})
}

// TryReceive pops the next payload received on a channel.
func (c *Client) TryReceive(ch transport.ChannelID) ([]byte, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	item := c.channel(ch).Pop()
	if item == nil {
		return nil, false
	}

	return item.([]byte), true
}

// TryEvent pops the next connection event.
func (c *Client) TryEvent() (transport.Event, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	item := c.events.Pop()
	if item == nil {
		return transport.Event{}, false
	}

	return item.(transport.Event), true
}

// Flush hands the queued payloads to the connection writer.
func (c *Client) Flush() error {
	c.lock.Lock()
	outbox := c.outbox
	c.outbox = nil
	c.lock.Unlock()

	for _, o := range outbox {
		frame, err := encodeFrame(0, o.ch, o.data, c.cfg.CompressThreshold)
		if err != nil {
			return err
		}

		if err := c.peer.enqueue(frame); err != nil {
			c.Close()
			return err
		}
	}

	return nil
}

// Close closes the connection. A Disconnected event follows.
func (c *Client) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.connected {
		return
	}

	c.connected = false
	c.outbox = nil
	c.peer.close()
	c.events.Push(transport.Event{Kind: transport.Disconnected, Conn: c.id})
}
