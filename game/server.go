package game

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/netsync"
	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport"
	"github.com/spacegame/netsync/world"
)

// SpawnPoint is where new players appear.
var SpawnPoint = Transform{X: 0, Y: 3}

// MaxThrust bounds every component of the force a pilot can apply.
const MaxThrust = 50.0

// Server runs the authoritative game on a synchronization server.
type Server struct {
	net   *netsync.Server
	world *world.ECS
	dt    float64

	players  map[transport.ConnID]netid.Handle
	piloting map[transport.ConnID]netid.Handle

	playerSpawns   *netsync.ServerEndpoint[PlayerSpawn]
	playerDespawns *netsync.ServerEndpoint[PlayerDespawn]
	playerMoves    *netsync.ServerEndpoint[PlayerMove]
	shipSpawns     *netsync.ServerEndpoint[ShipSpawn]
	shipPositions  *netsync.ServerEndpoint[ShipPosition]
	placeBlocks    *netsync.ServerEndpoint[PlaceBlock]
	removeBlocks   *netsync.ServerEndpoint[RemoveBlock]
	blockUpdates   *netsync.ServerEndpoint[BlockUpdate]
	blockRemovals  *netsync.ServerEndpoint[BlockRemoved]
	tryEnters      *netsync.ServerEndpoint[TryEnterShip]
	tryLeaves      *netsync.ServerEndpoint[TryLeaveShip]
	entered        *netsync.ServerEndpoint[EnteredShip]
	left           *netsync.ServerEndpoint[LeftShip]
	thrusts        *netsync.ServerEndpoint[ShipThrust]
	shipDespawns   *netsync.ServerEndpoint[ShipDespawn]
}

// NewServer registers the game protocol and systems on a synchronization
// server. The server must own w.
func NewServer(s *netsync.Server, w *world.ECS) *Server {
	if s.World() != world.World(w) {
		log.Panicf("game world is not the world of %s", s.Name())
	}

	g := &Server{
		net:      s,
		world:    w,
		dt:       s.Driver().Freq().Seconds(),
		players:  make(map[transport.ConnID]netid.Handle),
		piloting: make(map[transport.ConnID]netid.Handle),
	}

	g.playerSpawns = netsync.AddServerEvent(s, PlayerSpawnType)
	g.playerDespawns = netsync.AddServerEvent(s, PlayerDespawnType)
	g.playerMoves = netsync.AddServerEvent(s, PlayerMoveType)
	g.shipSpawns = netsync.AddServerEvent(s, ShipSpawnType)
	g.shipPositions = netsync.AddServerEvent(s, ShipPositionType)
	g.placeBlocks = netsync.AddServerEvent(s, PlaceBlockType)
	g.removeBlocks = netsync.AddServerEvent(s, RemoveBlockType)
	g.blockUpdates = netsync.AddServerEvent(s, BlockUpdateType)
	g.blockRemovals = netsync.AddServerEvent(s, BlockRemovedType)
	g.tryEnters = netsync.AddServerEvent(s, TryEnterShipType)
	g.tryLeaves = netsync.AddServerEvent(s, TryLeaveShipType)
	g.entered = netsync.AddServerEvent(s, EnteredShipType)
	g.left = netsync.AddServerEvent(s, LeftShipType)
	g.thrusts = netsync.AddServerEvent(s, ShipThrustType)
	g.shipDespawns = netsync.AddServerEvent(s, ShipDespawnType)

	s.OnConnect(g.join)
	s.OnDisconnect(g.leave)

	for _, system := range []func() bool{
		g.movePlayers,
		g.placeBlocksOnShips,
		g.removeBlocksFromShips,
		g.enterShips,
		g.leaveShips,
		g.steerShips,
		g.integrateShips,
		g.despawnEmptyShips,
	} {
		s.AddSystem(sim.MiddlewareFunc(system))
	}

	return g
}

// Player returns the body of a connected player.
func (g *Server) Player(conn transport.ConnID) (netid.Handle, bool) {
	h, found := g.players[conn]
	return h, found
}

// Ships lists all ships.
func (g *Server) Ships() []netid.Handle {
	return ships(g.world)
}

// SpawnShip creates a ship and announces it to every client.
func (g *Server) SpawnShip(t Transform, blocks []Block) netid.Handle {
	if len(blocks) == 0 {
		log.Panic("a ship needs at least one block")
	}

	h := g.world.SpawnWith(
		TransformComponent,
		VelocityComponent,
		ThrustComponent,
		ShipComponent,
		BlockMapComponent,
	)

	entry := g.world.Lookup(h)
	TransformComponent.SetValue(entry, t)
	BlockMapComponent.SetValue(entry, NewBlockMap(blocks...))

	g.shipSpawns.Broadcast(g.shipSpawn(h))

	return h
}

func (g *Server) join(conn transport.ConnID) {
	h := g.world.SpawnWith(TransformComponent, PlayerComponent)

	entry := g.world.Lookup(h)
	TransformComponent.SetValue(entry, SpawnPoint)
	PlayerComponent.SetValue(entry, Player{
		Conn: conn,
		Name: fmt.Sprintf("player-%d", conn),
	})

	g.players[conn] = h

	for _, other := range g.sortedPlayers() {
		g.playerSpawns.Send(conn, g.playerSpawn(other))
	}

	for _, ship := range g.Ships() {
		g.shipSpawns.Send(conn, g.shipSpawn(ship))
	}

	g.playerSpawns.BroadcastExcept(conn, g.playerSpawn(h))
}

func (g *Server) leave(conn transport.ConnID) {
	h, found := g.players[conn]
	if !found {
		return
	}

	if ship, piloting := g.piloting[conn]; piloting {
		g.releaseShip(ship)
	}

	delete(g.players, conn)

	g.playerDespawns.Broadcast(PlayerDespawn{Player: netid.RefTo(h)})
	g.net.Retire(h)
}

func (g *Server) sortedPlayers() []netid.Handle {
	conns := make([]transport.ConnID, 0, len(g.players))
	for conn := range g.players {
		conns = append(conns, conn)
	}

	sort.Slice(conns, func(i, j int) bool { return conns[i] < conns[j] })

	list := make([]netid.Handle, 0, len(conns))
	for _, conn := range conns {
		list = append(list, g.players[conn])
	}

	return list
}

func (g *Server) playerSpawn(h netid.Handle) PlayerSpawn {
	entry := g.world.Lookup(h)
	player := PlayerComponent.Get(entry)

	return PlayerSpawn{
		Player:    netid.RefTo(h),
		Conn:      player.Conn,
		Name:      player.Name,
		Transform: *TransformComponent.Get(entry),
	}
}

func (g *Server) shipSpawn(h netid.Handle) ShipSpawn {
	entry := g.world.Lookup(h)
	ship := ShipComponent.Get(entry)

	return ShipSpawn{
		Ship:      netid.RefTo(h),
		Transform: *TransformComponent.Get(entry),
		Velocity:  *VelocityComponent.Get(entry),
		Blocks:    BlockMapComponent.Get(entry).List(),
		Pilot:     ship.Pilot,
		HasPilot:  ship.HasPilot,
	}
}

func (g *Server) movePlayers() bool {
	progress := false

	for _, e := range g.playerMoves.Events() {
		h, found := g.players[e.From]
		if !found {
			continue
		}

		TransformComponent.SetValue(g.world.Lookup(h), e.Msg.Transform)
		g.playerMoves.BroadcastExcept(e.From, PlayerMove{
			Sender:    e.From,
			Transform: e.Msg.Transform,
		})

		progress = true
	}

	return progress
}

func (g *Server) placeBlocksOnShips() bool {
	progress := false

	for _, e := range g.placeBlocks.Events() {
		entry := shipEntry(g.world, e.Msg.Ship.Handle())
		if entry == nil || !e.Msg.Type.Valid() {
			continue
		}

		BlockMapComponent.Get(entry).Set(e.Msg.Pos, e.Msg.Type)
		g.blockUpdates.Broadcast(BlockUpdate{
			Ship: e.Msg.Ship,
			Pos:  e.Msg.Pos,
			Type: e.Msg.Type,
		})

		progress = true
	}

	return progress
}

func (g *Server) removeBlocksFromShips() bool {
	progress := false

	for _, e := range g.removeBlocks.Events() {
		entry := shipEntry(g.world, e.Msg.Ship.Handle())
		if entry == nil {
			continue
		}

		if !BlockMapComponent.Get(entry).Remove(e.Msg.Pos) {
			continue
		}

		g.blockRemovals.Broadcast(BlockRemoved{Ship: e.Msg.Ship, Pos: e.Msg.Pos})

		progress = true
	}

	return progress
}

func (g *Server) enterShips() bool {
	progress := false

	for _, e := range g.tryEnters.Events() {
		entry := shipEntry(g.world, e.Msg.Ship.Handle())
		if entry == nil {
			continue
		}

		ship := ShipComponent.Get(entry)
		if ship.HasPilot {
			continue
		}

		body, joined := g.players[e.From]
		if !joined {
			continue
		}

		if _, busy := g.piloting[e.From]; busy {
			continue
		}

		*ship = Ship{Pilot: e.From, HasPilot: true, Body: body}
		g.piloting[e.From] = e.Msg.Ship.Handle()

		g.entered.Broadcast(EnteredShip{
			Ship:      e.Msg.Ship,
			Pilot:     e.From,
			PilotBody: netid.OptionalRefTo(body),
		})

		progress = true
	}

	return progress
}

func (g *Server) leaveShips() bool {
	progress := false

	for _, e := range g.tryLeaves.Events() {
		entry := shipEntry(g.world, e.Msg.Ship.Handle())
		if entry == nil {
			continue
		}

		ship := ShipComponent.Get(entry)
		if !ship.HasPilot || ship.Pilot != e.From {
			continue
		}

		g.releaseShip(e.Msg.Ship.Handle())

		progress = true
	}

	return progress
}

// releaseShip removes the pilot of a ship and stops its engines.
func (g *Server) releaseShip(h netid.Handle) {
	entry := shipEntry(g.world, h)
	ship := ShipComponent.Get(entry)
	pilot := ship.Pilot

	delete(g.piloting, pilot)
	*ship = Ship{}
	ThrustComponent.SetValue(entry, Force{})

	g.left.Broadcast(LeftShip{Ship: netid.RefTo(h), Pilot: pilot})
}

func (g *Server) steerShips() bool {
	progress := false

	for _, e := range g.thrusts.Events() {
		entry := shipEntry(g.world, e.Msg.Ship.Handle())
		if entry == nil {
			continue
		}

		ship := ShipComponent.Get(entry)
		if !ship.HasPilot || ship.Pilot != e.From {
			continue
		}

		ThrustComponent.SetValue(entry, Force{
			X:      clamp(e.Msg.Force.X, MaxThrust),
			Y:      clamp(e.Msg.Force.Y, MaxThrust),
			Torque: clamp(e.Msg.Force.Torque, MaxThrust),
		})

		progress = true
	}

	return progress
}

func clamp(v, limit float64) float64 {
	if math.IsNaN(v) {
		return 0
	}

	return math.Max(-limit, math.Min(limit, v))
}

// integrateShips moves the ships by one tick. Every block weighs one unit.
// Ships that moved get their motion synchronized.
func (g *Server) integrateShips() bool {
	progress := false

	for _, h := range g.Ships() {
		entry := g.world.Lookup(h)

		mass := float64(BlockMapComponent.Get(entry).Len())
		if mass == 0 {
			continue
		}

		f := ThrustComponent.Get(entry)
		v := VelocityComponent.Get(entry)
		v.X += f.X / mass * g.dt
		v.Y += f.Y / mass * g.dt
		v.Angular += f.Torque / mass * g.dt

		if v.IsZero() {
			continue
		}

		t := TransformComponent.Get(entry)
		t.X += v.X * g.dt
		t.Y += v.Y * g.dt
		t.Angle += v.Angular * g.dt

		g.shipPositions.Broadcast(ShipPosition{
			Ship:      netid.RefTo(h),
			Transform: *t,
			Velocity:  *v,
		})

		progress = true
	}

	return progress
}

func (g *Server) despawnEmptyShips() bool {
	progress := false

	for _, h := range g.Ships() {
		entry := g.world.Lookup(h)
		if BlockMapComponent.Get(entry).Len() > 0 {
			continue
		}

		if ShipComponent.Get(entry).HasPilot {
			g.releaseShip(h)
		}

		g.shipDespawns.Broadcast(ShipDespawn{Ship: netid.RefTo(h)})
		g.net.Retire(h)

		progress = true
	}

	return progress
}
