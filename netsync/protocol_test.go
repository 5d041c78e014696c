package netsync_test

import (
	"github.com/spacegame/netsync/message"
	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/resolve"
	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport"
)

type spawn struct {
	Obj  netid.Ref
	Name string
}

type poke struct {
	Sender transport.ConnID
	Target netid.Ref
}

type notice struct {
	Text string
}

type chat struct {
	Sender transport.ConnID
	Text   string
}

var spawnType = message.MakeTypeBuilder[spawn]().
	WithKind(1).
	WithDirection(message.ServerToClient).
	WithFields(resolve.CreateField("obj",
		func(m *spawn) *netid.Ref { return &m.Obj })).
	Build("Spawn")

var pokeType = message.MakeTypeBuilder[poke]().
	WithKind(2).
	WithDirection(message.ClientToServer).
	WithFields(resolve.DropField("target",
		func(m *poke) *netid.Ref { return &m.Target })).
	WithSender(func(m *poke) *transport.ConnID { return &m.Sender }).
	Build("Poke")

var noticeType = message.MakeTypeBuilder[notice]().
	WithKind(3).
	WithDirection(message.ServerToClient).
	WithChannel(message.UnreliableChannel).
	Build("Notice")

var chatType = message.MakeTypeBuilder[chat]().
	WithKind(4).
	WithDirection(message.Both).
	WithSender(func(m *chat) *transport.ConnID { return &m.Sender }).
	Build("Chat")

type sequenceGenerator struct {
	next netid.ID
}

func (g *sequenceGenerator) Generate() netid.ID {
	id := g.next
	g.next++

	return id
}

type hookRecord struct {
	pos  *sim.HookPos
	info interface{}
}

type hookRecorder struct {
	records []hookRecord
}

func (r *hookRecorder) Func(ctx sim.HookCtx) {
	r.records = append(r.records, hookRecord{pos: ctx.Pos, info: ctx.Item})
}

func (r *hookRecorder) count(pos *sim.HookPos) int {
	n := 0
	for _, rec := range r.records {
		if rec.pos == pos {
			n++
		}
	}

	return n
}
