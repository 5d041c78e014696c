package netsync

import (
	"context"
	"log"

	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport"
	"github.com/spacegame/netsync/world"
)

// Client runs the client side of a session.
type Client struct {
	*Context

	transport    transport.Client
	onConnect    []func()
	onDisconnect []func()
}

// ClientBuilder can build clients.
type ClientBuilder struct {
	transport     transport.Client
	world         world.World
	freq          sim.Freq
	gen           netid.Generator
	queueCapacity int
}

// MakeClientBuilder creates a ClientBuilder with default parameters.
func MakeClientBuilder() ClientBuilder {
	return ClientBuilder{
		freq: 30 * sim.Hz,
		gen:  netid.RandomGenerator{},
	}
}

// WithTransport sets the transport the client talks through.
func (b ClientBuilder) WithTransport(t transport.Client) ClientBuilder {
	b.transport = t
	return b
}

// WithWorld sets the world that owns the objects of the client. A donburi
// world is created if none is given.
func (b ClientBuilder) WithWorld(w world.World) ClientBuilder {
	b.world = w
	return b
}

// WithFreq sets the tick rate.
func (b ClientBuilder) WithFreq(f sim.Freq) ClientBuilder {
	b.freq = f
	return b
}

// WithIDGenerator sets the source of wire identifiers.
func (b ClientBuilder) WithIDGenerator(gen netid.Generator) ClientBuilder {
	b.gen = gen
	return b
}

// WithQueueCapacity limits every message queue. Zero means unbounded.
func (b ClientBuilder) WithQueueCapacity(n int) ClientBuilder {
	b.queueCapacity = n
	return b
}

// Build creates a client.
func (b ClientBuilder) Build(name string) *Client {
	if b.transport == nil {
		log.Panicf("client %s has no transport", name)
	}

	w := b.world
	if w == nil {
		w = world.NewECS()
	}

	driver := sim.MakeDriverBuilder().WithFreq(b.freq).Build(name + ".Driver")

	c := &Client{
		Context: newContext(name, ClientSide, driver,
			netid.NewMapWithGenerator(b.gen), w, b.queueCapacity),
		transport: b.transport,
	}

	c.receive.AddMiddleware(sim.MiddlewareFunc(c.receivePackets))
	c.flush.AddMiddleware(sim.MiddlewareFunc(c.flushTransport))

	return c
}

// Transport returns the transport of the client.
func (c *Client) Transport() transport.Client {
	return c.transport
}

// ConnID returns the connection ID assigned by the server.
func (c *Client) ConnID() transport.ConnID {
	return c.transport.ID()
}

// OnConnect registers a function that runs when the connection is
// established.
func (c *Client) OnConnect(fn func()) {
	c.onConnect = append(c.onConnect, fn)
}

// OnDisconnect registers a function that runs when the connection is lost.
func (c *Client) OnDisconnect(fn func()) {
	c.onDisconnect = append(c.onDisconnect, fn)
}

// Run ticks the client until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	return c.driver.Run(ctx)
}

func (c *Client) receivePackets() bool {
	c.resetEvents()

	progress := false

	for {
		e, ok := c.transport.TryEvent()
		if !ok {
			break
		}

		progress = true
		c.handleEvent(e)
	}

	for _, ch := range c.registry.Channels() {
		for {
			data, ok := c.transport.TryReceive(ch)
			if !ok {
				break
			}

			progress = true

			if reason := c.demux(0, data); reason != "" {
				c.violation(reason)
			}
		}
	}

	return progress
}

func (c *Client) handleEvent(e transport.Event) {
	switch e.Kind {
	case transport.Connected:
		c.hook(HookPosConnect, MsgInfo{Conn: e.Conn})

		for _, fn := range c.onConnect {
			fn()
		}
	case transport.Disconnected:
		c.hook(HookPosDisconnect, MsgInfo{Conn: e.Conn})

		for _, fn := range c.onDisconnect {
			fn()
		}
	}
}

// violation stops the client. The stream from the server can no longer be
// trusted to be aligned with the local protocol.
func (c *Client) violation(reason string) {
	c.hook(HookPosProtocolViolation, MsgInfo{Reason: reason})
	log.Panicf("%s: protocol violation by server: %s", c.name, reason)
}

func (c *Client) flushTransport() bool {
	logFlushError(c.name, c.transport.Flush())
	return false
}
