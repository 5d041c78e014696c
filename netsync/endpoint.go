package netsync

import (
	"log"
	"slices"

	"github.com/spacegame/netsync/message"
	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport"
)

// An Event is a message received during the current tick.
type Event[T any] struct {
	// From is the client that sent the message. It is zero on clients.
	From transport.ConnID
	Msg  T
}

type outboundEntry[T any] struct {
	dest message.Destination
	msg  T
}

// endpoint is the part of a message pipeline shared by servers and clients.
type endpoint[T any] struct {
	ctx      *Context
	typ      *message.Type[T]
	outbound sim.Buffer
	inbound  sim.Buffer
	events   []Event[T]
}

func newEndpoint[T any](
	ctx *Context,
	typ *message.Type[T],
	sends, receives bool,
	violation func(from transport.ConnID, reason string),
) *endpoint[T] {
	ctx.registry.Register(typ)

	e := &endpoint[T]{ctx: ctx, typ: typ}

	if receives {
		e.inbound = ctx.addInbound(typ.Info())
		ctx.resets = append(ctx.resets, func() { e.events = nil })
		ctx.purges = append(ctx.purges, func(conn transport.ConnID) {
			e.events = slices.DeleteFunc(e.events, func(ev Event[T]) bool {
				return ev.From == conn
			})
		})
		ctx.dispatch.AddMiddleware(sim.MiddlewareFunc(func() bool {
			return e.dispatchInbound(violation)
		}))
	}

	if sends {
		e.outbound = ctx.addOutbound(typ.Info())
	}

	return e
}

// Events returns the messages received during the current tick.
func (e *endpoint[T]) Events() []Event[T] {
	return e.events
}

func (e *endpoint[T]) push(dest message.Destination, msg T) {
	if e.outbound == nil {
		log.Panicf("%s cannot send %s messages", e.ctx.side, e.typ.Name())
	}

	e.outbound.Push(outboundEntry[T]{dest: dest, msg: msg})
}

func (e *endpoint[T]) dispatchInbound(
	violation func(from transport.ConnID, reason string),
) bool {
	progress := false
	info := e.typ.Info()

	for e.inbound.Size() > 0 {
		p := e.inbound.Pop().(rawPacket)
		progress = true

		if e.ctx.accepts != nil && !e.ctx.accepts(p.from) {
			continue
		}

		msg, err := e.typ.Decode(p.data)
		if err != nil {
			violation(p.from, err.Error())
			continue
		}

		table := e.typ.Table()
		if !table.NetworkToEntity(&msg, e.ctx.ids, e.ctx.world) {
			e.ctx.hookMsg(HookPosMsgDiscarded, info, p.from,
				message.Destination{}, len(p.data))
			continue
		}

		e.events = append(e.events, Event[T]{From: p.from, Msg: msg})
		e.ctx.hookMsg(HookPosMsgRecvd, info, p.from,
			message.Destination{}, len(p.data))
	}

	return progress
}

// drainOutbound translates, encodes and hands every queued message to send.
// Every message is encoded once.
func (e *endpoint[T]) drainOutbound(
	stamp func(msg *T),
	send func(dest message.Destination, data []byte),
) bool {
	progress := false
	info := e.typ.Info()
	table := e.typ.Table()

	for e.outbound.Size() > 0 {
		entry := e.outbound.Pop().(outboundEntry[T])
		progress = true

		msg := entry.msg
		if !table.EntityToNetwork(&msg, e.ctx.ids, e.ctx.world) {
			e.ctx.hookMsg(HookPosMsgDropped, info, entry.dest.Conn,
				entry.dest, 0)
			continue
		}

		if stamp != nil {
			stamp(&msg)
		}

		data, err := e.typ.Encode(&msg)
		if err != nil {
			log.Panicf("%s: %v", e.ctx.name, err)
		}

		send(entry.dest, data)
		e.ctx.hookMsg(HookPosMsgSend, info, entry.dest.Conn,
			entry.dest, len(data))
	}

	return progress
}

// ServerEndpoint is the server side of a message type.
type ServerEndpoint[T any] struct {
	*endpoint[T]
}

// AddServerEvent registers a message type on a server. The server gets an
// outbound queue if it sends the type and an inbound queue if it receives
// it.
func AddServerEvent[T any](
	s *Server,
	typ *message.Type[T],
) *ServerEndpoint[T] {
	d := typ.Direction()
	e := &ServerEndpoint[T]{
		endpoint: newEndpoint(s.Context, typ,
			d.SentByServer(), d.SentByClient(), s.violation),
	}

	if e.outbound != nil {
		ch := typ.Channel()
		s.drain.AddMiddleware(sim.MiddlewareFunc(func() bool {
			return e.drainOutbound(nil,
				func(dest message.Destination, data []byte) {
					switch dest.Kind {
					case message.ToClient:
						s.transport.Send(ch, dest.Conn, data)
					case message.ToAllExcept:
						s.transport.BroadcastExcept(ch, dest.Conn, data)
					default:
						s.transport.Broadcast(ch, data)
					}
				})
		}))
	}

	return e
}

// SendTo queues a message for the given destination.
func (e *ServerEndpoint[T]) SendTo(dest message.Destination, msg T) {
	e.push(dest, msg)
}

// Send queues a message for one client.
func (e *ServerEndpoint[T]) Send(conn transport.ConnID, msg T) {
	e.push(message.To(conn), msg)
}

// Broadcast queues a message for every client.
func (e *ServerEndpoint[T]) Broadcast(msg T) {
	e.push(message.All(), msg)
}

// BroadcastExcept queues a message for every client except one.
func (e *ServerEndpoint[T]) BroadcastExcept(conn transport.ConnID, msg T) {
	e.push(message.AllExcept(conn), msg)
}

// ClientEndpoint is the client side of a message type.
type ClientEndpoint[T any] struct {
	*endpoint[T]
}

// AddClientEvent registers a message type on a client. The client gets an
// outbound queue if it sends the type and an inbound queue if it receives
// it.
func AddClientEvent[T any](
	c *Client,
	typ *message.Type[T],
) *ClientEndpoint[T] {
	d := typ.Direction()
	e := &ClientEndpoint[T]{
		endpoint: newEndpoint(c.Context, typ,
			d.SentByClient(), d.SentByServer(),
			func(_ transport.ConnID, reason string) { c.violation(reason) }),
	}

	if e.outbound != nil {
		ch := typ.Channel()
		table := typ.Table()
		c.drain.AddMiddleware(sim.MiddlewareFunc(func() bool {
			return e.drainOutbound(
				func(msg *T) { table.StampSender(msg, c.transport.ID()) },
				func(_ message.Destination, data []byte) {
					c.transport.Send(ch, data)
				})
		}))
	}

	return e
}

// Send queues a message for the server.
func (e *ClientEndpoint[T]) Send(msg T) {
	e.push(message.Destination{}, msg)
}
