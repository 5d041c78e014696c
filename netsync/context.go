// Package netsync runs the synchronization pipeline of one side of a game
// session.
//
// Each tick runs the following phases in order:
//
//	Receive   connection events, then raw payloads sorted by kind
//	Dispatch  typed decoding, identifier resolution, event publication
//	Update    game systems
//	Drain     identifier translation, encoding, hand-off to the transport
//	Flush     the transport sends everything handed to it
//	Retire    deferred despawns
//
// Game systems read the events published during the same tick and queue
// outgoing messages that are sent at the end of the same tick.
package netsync

import (
	"fmt"
	"log"

	"github.com/spacegame/netsync/message"
	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport"
	"github.com/spacegame/netsync/world"
)

// Side tells whether a context runs a server or a client.
type Side int

// A list of all sides.
const (
	ServerSide Side = iota
	ClientSide
)

func (s Side) String() string {
	if s == ServerSide {
		return "server"
	}

	return "client"
}

// A list of hook positions invoked by a Context.
var (
	HookPosMsgSend           = &sim.HookPos{Name: "Msg Send"}
	HookPosMsgDropped        = &sim.HookPos{Name: "Msg Dropped"}
	HookPosMsgRecvd          = &sim.HookPos{Name: "Msg Recvd"}
	HookPosMsgDiscarded      = &sim.HookPos{Name: "Msg Discarded"}
	HookPosConnect           = &sim.HookPos{Name: "Connect"}
	HookPosDisconnect        = &sim.HookPos{Name: "Disconnect"}
	HookPosProtocolViolation = &sim.HookPos{Name: "Protocol Violation"}
)

// MsgInfo is the hook item of message and connection hooks.
type MsgInfo struct {
	Tick    uint64
	Side    Side
	Kind    message.Kind
	Name    string
	Channel transport.ChannelID
	Conn    transport.ConnID
	Dest    message.Destination
	Bytes   int
	Reason  string
}

type rawPacket struct {
	from transport.ConnID
	data []byte
}

// Context holds the state shared by the phases of one side: the identifier
// map, the world, the message registry and the inbound raw queues.
type Context struct {
	sim.HookableBase

	name          string
	side          Side
	driver        *sim.Driver
	ids           *netid.Map
	world         world.World
	registry      *message.Registry
	queueCapacity int

	raw      map[message.Kind]sim.Buffer
	accepts  func(from transport.ConnID) bool
	outbound []sim.Buffer
	resets   []func()
	purges   []func(conn transport.ConnID)
	retired  []netid.Handle

	receive  *sim.Phase
	dispatch *sim.Phase
	update   *sim.Phase
	drain    *sim.Phase
	flush    *sim.Phase
	retire   *sim.Phase
}

func newContext(
	name string,
	side Side,
	driver *sim.Driver,
	ids *netid.Map,
	w world.World,
	queueCapacity int,
) *Context {
	c := &Context{
		name:          name,
		side:          side,
		driver:        driver,
		ids:           ids,
		world:         w,
		registry:      message.NewRegistry(),
		queueCapacity: queueCapacity,
		raw:           make(map[message.Kind]sim.Buffer),
		receive:       sim.NewPhase("Receive"),
		dispatch:      sim.NewPhase("Dispatch"),
		update:        sim.NewPhase("Update"),
		drain:         sim.NewPhase("Drain"),
		flush:         sim.NewPhase("Flush"),
		retire:        sim.NewPhase("Retire"),
	}

	for _, p := range []*sim.Phase{
		c.receive, c.dispatch, c.update, c.drain, c.flush, c.retire,
	} {
		driver.AddPhase(p)
	}

	c.retire.AddMiddleware(sim.MiddlewareFunc(c.retireObjects))

	return c
}

// Name returns the name of the context.
func (c *Context) Name() string {
	return c.name
}

// Side tells if the context runs a server or a client.
func (c *Context) Side() Side {
	return c.side
}

// IDs returns the identifier map of the side.
func (c *Context) IDs() *netid.Map {
	return c.ids
}

// World returns the world of the side.
func (c *Context) World() world.World {
	return c.world
}

// Registry returns the message types registered on the side.
func (c *Context) Registry() *message.Registry {
	return c.registry
}

// Driver returns the tick driver.
func (c *Context) Driver() *sim.Driver {
	return c.driver
}

// CurrentTick returns the number of completed ticks.
func (c *Context) CurrentTick() uint64 {
	return c.driver.CurrentTick()
}

// Buffers lists the inbound raw queues and the outbound queues.
func (c *Context) Buffers() []sim.Buffer {
	var list []sim.Buffer

	for _, info := range c.registry.Infos() {
		if buf, found := c.raw[info.Kind]; found {
			list = append(list, buf)
		}
	}

	return append(list, c.outbound...)
}

// AddSystem appends game logic to the Update phase. Systems run in the order
// they are added.
func (c *Context) AddSystem(system sim.Middleware) {
	c.update.AddMiddleware(system)
}

// Retire schedules an object for deletion at the end of the tick. The object
// keeps its wire identifier until then, so messages that refer to it can
// still be sent during the tick.
func (c *Context) Retire(h netid.Handle) {
	c.retired = append(c.retired, h)
}

// Tick runs one tick.
func (c *Context) Tick() bool {
	return c.driver.Tick()
}

func (c *Context) retireObjects() bool {
	if len(c.retired) == 0 {
		return false
	}

	for _, h := range c.retired {
		c.ids.Remove(h)
		c.world.Despawn(h)
	}

	c.retired = nil

	return true
}

func (c *Context) resetEvents() {
	for _, reset := range c.resets {
		reset()
	}
}

// purgeEvents forgets the messages of the current tick that came from conn.
func (c *Context) purgeEvents(conn transport.ConnID) {
	for _, purge := range c.purges {
		purge(conn)
	}
}

func (c *Context) newQueue(name string) sim.Buffer {
	return sim.NewBuffer(fmt.Sprintf("%s.%s", c.name, name), c.queueCapacity)
}

func (c *Context) addInbound(info message.Info) sim.Buffer {
	buf := c.newQueue(info.Name + ".Inbound")
	c.raw[info.Kind] = buf

	return buf
}

func (c *Context) addOutbound(info message.Info) sim.Buffer {
	buf := c.newQueue(info.Name + ".Outbound")
	c.outbound = append(c.outbound, buf)

	return buf
}

// demux sorts a raw payload into the inbound queue of its kind. It returns a
// non-empty reason when the payload violates the protocol.
func (c *Context) demux(from transport.ConnID, data []byte) string {
	env, err := message.DecodeEnvelope(data)
	if err != nil {
		return err.Error()
	}

	buf, found := c.raw[env.Kind]
	if !found {
		return fmt.Sprintf("unexpected message kind %d", env.Kind)
	}

	if !buf.CanPush() {
		return fmt.Sprintf("inbound queue %s is full", buf.Name())
	}

	buf.Push(rawPacket{from: from, data: env.Data})

	return ""
}

func (c *Context) hook(pos *sim.HookPos, info MsgInfo) {
	if c.NumHooks() == 0 {
		return
	}

	info.Tick = c.driver.CurrentTick()
	info.Side = c.side

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   info,
	})
}

func (c *Context) hookMsg(
	pos *sim.HookPos,
	info message.Info,
	conn transport.ConnID,
	dest message.Destination,
	bytes int,
) {
	c.hook(pos, MsgInfo{
		Kind:    info.Kind,
		Name:    info.Name,
		Channel: info.Channel,
		Conn:    conn,
		Dest:    dest,
		Bytes:   bytes,
	})
}

func logFlushError(name string, err error) {
	if err != nil {
		log.Printf("%s: flush failed: %v", name, err)
	}
}
