package game

import (
	"log"

	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/netsync"
	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport"
	"github.com/spacegame/netsync/world"
)

// Client mirrors the game of the server and sends the actions of the local
// player.
type Client struct {
	net   *netsync.Client
	world *world.ECS

	players map[transport.ConnID]netid.Handle

	playerSpawns   *netsync.ClientEndpoint[PlayerSpawn]
	playerDespawns *netsync.ClientEndpoint[PlayerDespawn]
	playerMoves    *netsync.ClientEndpoint[PlayerMove]
	shipSpawns     *netsync.ClientEndpoint[ShipSpawn]
	shipPositions  *netsync.ClientEndpoint[ShipPosition]
	placeBlocks    *netsync.ClientEndpoint[PlaceBlock]
	removeBlocks   *netsync.ClientEndpoint[RemoveBlock]
	blockUpdates   *netsync.ClientEndpoint[BlockUpdate]
	blockRemovals  *netsync.ClientEndpoint[BlockRemoved]
	tryEnters      *netsync.ClientEndpoint[TryEnterShip]
	tryLeaves      *netsync.ClientEndpoint[TryLeaveShip]
	entered        *netsync.ClientEndpoint[EnteredShip]
	left           *netsync.ClientEndpoint[LeftShip]
	thrusts        *netsync.ClientEndpoint[ShipThrust]
	shipDespawns   *netsync.ClientEndpoint[ShipDespawn]
}

// NewClient registers the game protocol and systems on a synchronization
// client. The client must own w.
func NewClient(c *netsync.Client, w *world.ECS) *Client {
	if c.World() != world.World(w) {
		log.Panicf("game world is not the world of %s", c.Name())
	}

	g := &Client{
		net:     c,
		world:   w,
		players: make(map[transport.ConnID]netid.Handle),
	}

	g.playerSpawns = netsync.AddClientEvent(c, PlayerSpawnType)
	g.playerDespawns = netsync.AddClientEvent(c, PlayerDespawnType)
	g.playerMoves = netsync.AddClientEvent(c, PlayerMoveType)
	g.shipSpawns = netsync.AddClientEvent(c, ShipSpawnType)
	g.shipPositions = netsync.AddClientEvent(c, ShipPositionType)
	g.placeBlocks = netsync.AddClientEvent(c, PlaceBlockType)
	g.removeBlocks = netsync.AddClientEvent(c, RemoveBlockType)
	g.blockUpdates = netsync.AddClientEvent(c, BlockUpdateType)
	g.blockRemovals = netsync.AddClientEvent(c, BlockRemovedType)
	g.tryEnters = netsync.AddClientEvent(c, TryEnterShipType)
	g.tryLeaves = netsync.AddClientEvent(c, TryLeaveShipType)
	g.entered = netsync.AddClientEvent(c, EnteredShipType)
	g.left = netsync.AddClientEvent(c, LeftShipType)
	g.thrusts = netsync.AddClientEvent(c, ShipThrustType)
	g.shipDespawns = netsync.AddClientEvent(c, ShipDespawnType)

	for _, system := range []func() bool{
		g.spawnPlayers,
		g.movePlayers,
		g.spawnShips,
		g.moveShips,
		g.updateBlocks,
		g.removeBlocksFromShips,
		g.updatePilots,
		g.despawnShips,
		g.despawnPlayers,
	} {
		c.AddSystem(sim.MiddlewareFunc(system))
	}

	return g
}

// Self returns the body of the local player once the server announced it.
func (g *Client) Self() (netid.Handle, bool) {
	return g.Player(g.net.ConnID())
}

// Player returns the body of a player.
func (g *Client) Player(conn transport.ConnID) (netid.Handle, bool) {
	h, found := g.players[conn]
	return h, found
}

// NumPlayers returns the number of players known locally.
func (g *Client) NumPlayers() int {
	return len(g.players)
}

// Ships lists the ships known locally.
func (g *Client) Ships() []netid.Handle {
	return ships(g.world)
}

// Pilot returns the pilot of a ship.
func (g *Client) Pilot(ship netid.Handle) (transport.ConnID, bool) {
	entry := shipEntry(g.world, ship)
	if entry == nil {
		return 0, false
	}

	s := ShipComponent.Get(entry)

	return s.Pilot, s.HasPilot
}

// Transform returns the placement of an object.
func (g *Client) Transform(h netid.Handle) (Transform, bool) {
	entry := g.world.Lookup(h)
	if entry == nil || !entry.HasComponent(TransformComponent) {
		return Transform{}, false
	}

	return *TransformComponent.Get(entry), true
}

// Blocks lists the blocks of a ship.
func (g *Client) Blocks(ship netid.Handle) []Block {
	entry := shipEntry(g.world, ship)
	if entry == nil {
		return nil
	}

	return BlockMapComponent.Get(entry).List()
}

// Move moves the local player and tells the server.
func (g *Client) Move(t Transform) {
	if self, found := g.Self(); found {
		TransformComponent.SetValue(g.world.Lookup(self), t)
	}

	g.playerMoves.Send(PlayerMove{Transform: t})
}

// PlaceBlock asks the server to place a block. The block appears once the
// server confirms it.
func (g *Client) PlaceBlock(ship netid.Handle, pos BlockPos, t BlockType) {
	g.placeBlocks.Send(PlaceBlock{Ship: netid.RefTo(ship), Pos: pos, Type: t})
}

// RemoveBlock asks the server to remove a block.
func (g *Client) RemoveBlock(ship netid.Handle, pos BlockPos) {
	g.removeBlocks.Send(RemoveBlock{Ship: netid.RefTo(ship), Pos: pos})
}

// EnterShip asks the server to make the local player the pilot of a ship.
func (g *Client) EnterShip(ship netid.Handle) {
	g.tryEnters.Send(TryEnterShip{Ship: netid.RefTo(ship)})
}

// LeaveShip asks the server to release a ship.
func (g *Client) LeaveShip(ship netid.Handle) {
	g.tryLeaves.Send(TryLeaveShip{Ship: netid.RefTo(ship)})
}

// Thrust steers a ship piloted by the local player.
func (g *Client) Thrust(ship netid.Handle, f Force) {
	g.thrusts.Send(ShipThrust{Ship: netid.RefTo(ship), Force: f})
}

func (g *Client) spawnPlayers() bool {
	for _, e := range g.playerSpawns.Events() {
		h := e.Msg.Player.Handle()
		entry := g.world.Lookup(h)

		set(entry, TransformComponent, e.Msg.Transform)
		set(entry, PlayerComponent, Player{Conn: e.Msg.Conn, Name: e.Msg.Name})

		g.players[e.Msg.Conn] = h
	}

	return len(g.playerSpawns.Events()) > 0
}

func (g *Client) movePlayers() bool {
	progress := false

	for _, e := range g.playerMoves.Events() {
		h, found := g.players[e.Msg.Sender]
		if !found {
			continue
		}

		TransformComponent.SetValue(g.world.Lookup(h), e.Msg.Transform)

		progress = true
	}

	return progress
}

func (g *Client) despawnPlayers() bool {
	for _, e := range g.playerDespawns.Events() {
		h := e.Msg.Player.Handle()
		if entry := g.world.Lookup(h); entry != nil &&
			entry.HasComponent(PlayerComponent) {
			delete(g.players, PlayerComponent.Get(entry).Conn)
		}

		g.net.Retire(h)
	}

	return len(g.playerDespawns.Events()) > 0
}

func (g *Client) spawnShips() bool {
	for _, e := range g.shipSpawns.Events() {
		entry := g.world.Lookup(e.Msg.Ship.Handle())

		ship := Ship{Pilot: e.Msg.Pilot, HasPilot: e.Msg.HasPilot}
		if body, found := g.players[e.Msg.Pilot]; found && ship.HasPilot {
			ship.Body = body
		}

		set(entry, TransformComponent, e.Msg.Transform)
		set(entry, VelocityComponent, e.Msg.Velocity)
		set(entry, ShipComponent, ship)
		set(entry, BlockMapComponent, NewBlockMap(e.Msg.Blocks...))
	}

	return len(g.shipSpawns.Events()) > 0
}

func (g *Client) moveShips() bool {
	progress := false

	for _, e := range g.shipPositions.Events() {
		entry := shipEntry(g.world, e.Msg.Ship.Handle())
		if entry == nil {
			continue
		}

		TransformComponent.SetValue(entry, e.Msg.Transform)
		VelocityComponent.SetValue(entry, e.Msg.Velocity)

		progress = true
	}

	return progress
}

func (g *Client) updateBlocks() bool {
	progress := false

	for _, e := range g.blockUpdates.Events() {
		entry := shipEntry(g.world, e.Msg.Ship.Handle())
		if entry == nil {
			continue
		}

		BlockMapComponent.Get(entry).Set(e.Msg.Pos, e.Msg.Type)

		progress = true
	}

	return progress
}

func (g *Client) removeBlocksFromShips() bool {
	progress := false

	for _, e := range g.blockRemovals.Events() {
		entry := shipEntry(g.world, e.Msg.Ship.Handle())
		if entry == nil {
			continue
		}

		BlockMapComponent.Get(entry).Remove(e.Msg.Pos)

		progress = true
	}

	return progress
}

func (g *Client) updatePilots() bool {
	progress := false

	for _, e := range g.entered.Events() {
		entry := shipEntry(g.world, e.Msg.Ship.Handle())
		if entry == nil {
			continue
		}

		ship := Ship{Pilot: e.Msg.Pilot, HasPilot: true}
		if e.Msg.PilotBody != nil {
			ship.Body = e.Msg.PilotBody.Handle()
		}

		ShipComponent.SetValue(entry, ship)

		progress = true
	}

	for _, e := range g.left.Events() {
		entry := shipEntry(g.world, e.Msg.Ship.Handle())
		if entry == nil {
			continue
		}

		ShipComponent.SetValue(entry, Ship{})

		progress = true
	}

	return progress
}

func (g *Client) despawnShips() bool {
	for _, e := range g.shipDespawns.Events() {
		g.net.Retire(e.Msg.Ship.Handle())
	}

	return len(g.shipDespawns.Events()) > 0
}
