package netsync

import (
	"context"
	"log"

	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport"
	"github.com/spacegame/netsync/world"
)

// Server runs the server side of a session.
type Server struct {
	*Context

	transport    transport.Server
	connected    map[transport.ConnID]bool
	onConnect    []func(conn transport.ConnID)
	onDisconnect []func(conn transport.ConnID)
}

// ServerBuilder can build servers.
type ServerBuilder struct {
	transport     transport.Server
	world         world.World
	freq          sim.Freq
	gen           netid.Generator
	queueCapacity int
}

// MakeServerBuilder creates a ServerBuilder with default parameters.
func MakeServerBuilder() ServerBuilder {
	return ServerBuilder{
		freq: 30 * sim.Hz,
		gen:  netid.RandomGenerator{},
	}
}

// WithTransport sets the transport the server talks through.
func (b ServerBuilder) WithTransport(t transport.Server) ServerBuilder {
	b.transport = t
	return b
}

// WithWorld sets the world that owns the objects of the server. A donburi
// world is created if none is given.
func (b ServerBuilder) WithWorld(w world.World) ServerBuilder {
	b.world = w
	return b
}

// WithFreq sets the tick rate.
func (b ServerBuilder) WithFreq(f sim.Freq) ServerBuilder {
	b.freq = f
	return b
}

// WithIDGenerator sets the source of wire identifiers.
func (b ServerBuilder) WithIDGenerator(gen netid.Generator) ServerBuilder {
	b.gen = gen
	return b
}

// WithQueueCapacity limits every message queue. Zero means unbounded.
func (b ServerBuilder) WithQueueCapacity(n int) ServerBuilder {
	b.queueCapacity = n
	return b
}

// Build creates a server.
func (b ServerBuilder) Build(name string) *Server {
	if b.transport == nil {
		log.Panicf("server %s has no transport", name)
	}

	w := b.world
	if w == nil {
		w = world.NewECS()
	}

	driver := sim.MakeDriverBuilder().WithFreq(b.freq).Build(name + ".Driver")

	s := &Server{
		Context: newContext(name, ServerSide, driver,
			netid.NewMapWithGenerator(b.gen), w, b.queueCapacity),
		transport: b.transport,
		connected: make(map[transport.ConnID]bool),
	}

	s.accepts = s.Connected
	s.receive.AddMiddleware(sim.MiddlewareFunc(s.receivePackets))
	s.flush.AddMiddleware(sim.MiddlewareFunc(s.flushTransport))

	return s
}

// Transport returns the transport of the server.
func (s *Server) Transport() transport.Server {
	return s.transport
}

// OnConnect registers a function that runs when a client connects. Messages
// sent from it go out at the end of the same tick.
func (s *Server) OnConnect(fn func(conn transport.ConnID)) {
	s.onConnect = append(s.onConnect, fn)
}

// OnDisconnect registers a function that runs when a client disconnects.
func (s *Server) OnDisconnect(fn func(conn transport.ConnID)) {
	s.onDisconnect = append(s.onDisconnect, fn)
}

// Connected tells if a client is connected.
func (s *Server) Connected(conn transport.ConnID) bool {
	return s.connected[conn]
}

// Run ticks the server until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.driver.Run(ctx)
}

func (s *Server) receivePackets() bool {
	s.resetEvents()

	progress := false

	for {
		e, ok := s.transport.TryEvent()
		if !ok {
			break
		}

		progress = true
		s.handleEvent(e)
	}

	for _, ch := range s.registry.Channels() {
		for {
			from, data, ok := s.transport.TryReceive(ch)
			if !ok {
				break
			}

			progress = true

			if !s.connected[from] {
				continue
			}

			if reason := s.demux(from, data); reason != "" {
				s.violation(from, reason)
			}
		}
	}

	return progress
}

func (s *Server) handleEvent(e transport.Event) {
	switch e.Kind {
	case transport.Connected:
		if s.connected[e.Conn] {
			return
		}

		s.connected[e.Conn] = true
		s.hook(HookPosConnect, MsgInfo{Conn: e.Conn})

		for _, fn := range s.onConnect {
			fn(e.Conn)
		}
	case transport.Disconnected:
		if !s.connected[e.Conn] {
			return
		}

		delete(s.connected, e.Conn)
		s.hook(HookPosDisconnect, MsgInfo{Conn: e.Conn})

		for _, fn := range s.onDisconnect {
			fn(e.Conn)
		}
	}
}

// violation disconnects a client that broke the protocol. The client is
// treated as disconnected right away. Its messages of this tick are dropped,
// including those already dispatched.
func (s *Server) violation(conn transport.ConnID, reason string) {
	log.Printf("%s: protocol violation by %s: %s", s.name, conn, reason)

	s.hook(HookPosProtocolViolation, MsgInfo{Conn: conn, Reason: reason})
	s.transport.Disconnect(conn)
	s.handleEvent(transport.Event{Kind: transport.Disconnected, Conn: conn})
	s.purgeEvents(conn)
}

func (s *Server) flushTransport() bool {
	logFlushError(s.name, s.transport.Flush())
	return false
}
