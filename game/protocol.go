package game

import (
	"github.com/spacegame/netsync/message"
	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/resolve"
	"github.com/spacegame/netsync/transport"
)

// PlayerSpawn announces a player body.
type PlayerSpawn struct {
	Player    netid.Ref
	Conn      transport.ConnID
	Name      string
	Transform Transform
}

// PlayerDespawn announces that a player left.
type PlayerDespawn struct {
	Player netid.Ref
}

// PlayerMove carries the new placement of a player body. Clients send their
// own moves and the server relays them to everyone else.
type PlayerMove struct {
	Sender    transport.ConnID
	Transform Transform
}

// ShipSpawn announces a ship with all its blocks.
type ShipSpawn struct {
	Ship      netid.Ref
	Transform Transform
	Velocity  Velocity
	Blocks    []Block
	Pilot     transport.ConnID
	HasPilot  bool
}

// ShipPosition synchronizes the motion of a ship.
type ShipPosition struct {
	Ship      netid.Ref
	Transform Transform
	Velocity  Velocity
}

// PlaceBlock asks the server to place a block on a ship.
type PlaceBlock struct {
	Sender transport.ConnID
	Ship   netid.Ref
	Pos    BlockPos
	Type   BlockType
}

// RemoveBlock asks the server to remove a block from a ship.
type RemoveBlock struct {
	Sender transport.ConnID
	Ship   netid.Ref
	Pos    BlockPos
}

// BlockUpdate announces a placed block.
type BlockUpdate struct {
	Ship netid.Ref
	Pos  BlockPos
	Type BlockType
}

// BlockRemoved announces a removed block.
type BlockRemoved struct {
	Ship netid.Ref
	Pos  BlockPos
}

// TryEnterShip asks to become the pilot of a ship.
type TryEnterShip struct {
	Sender transport.ConnID
	Ship   netid.Ref
}

// TryLeaveShip asks to stop piloting a ship.
type TryLeaveShip struct {
	Sender transport.ConnID
	Ship   netid.Ref
}

// EnteredShip announces a new pilot.
type EnteredShip struct {
	Ship      netid.Ref
	Pilot     transport.ConnID
	PilotBody *netid.Ref
}

// LeftShip announces that a pilot left a ship.
type LeftShip struct {
	Ship  netid.Ref
	Pilot transport.ConnID
}

// ShipThrust sets the thrust of a ship. Only the pilot can steer.
type ShipThrust struct {
	Sender transport.ConnID
	Ship   netid.Ref
	Force  Force
}

// ShipDespawn announces that a ship is gone.
type ShipDespawn struct {
	Ship netid.Ref
}

// The message types of the game, in kind order. All of them use the reliable
// channel except ShipPosition.
var PlayerSpawnType = message.MakeTypeBuilder[PlayerSpawn]().
	WithKind(1).
	WithDirection(message.ServerToClient).
	WithFields(resolve.CreateField("player",
		func(m *PlayerSpawn) *netid.Ref { return &m.Player })).
	Build("PlayerSpawn")

var PlayerDespawnType = message.MakeTypeBuilder[PlayerDespawn]().
	WithKind(2).
	WithDirection(message.ServerToClient).
	WithFields(resolve.DropField("player",
		func(m *PlayerDespawn) *netid.Ref { return &m.Player })).
	Build("PlayerDespawn")

var PlayerMoveType = message.MakeTypeBuilder[PlayerMove]().
	WithKind(3).
	WithDirection(message.Both).
	WithSender(func(m *PlayerMove) *transport.ConnID { return &m.Sender }).
	Build("PlayerMove")

var ShipSpawnType = message.MakeTypeBuilder[ShipSpawn]().
	WithKind(4).
	WithDirection(message.ServerToClient).
	WithFields(resolve.CreateField("ship",
		func(m *ShipSpawn) *netid.Ref { return &m.Ship })).
	Build("ShipSpawn")

var ShipPositionType = message.MakeTypeBuilder[ShipPosition]().
	WithKind(5).
	WithDirection(message.ServerToClient).
	WithChannel(message.UnreliableChannel).
	WithFields(resolve.DropField("ship",
		func(m *ShipPosition) *netid.Ref { return &m.Ship })).
	Build("ShipPosition")

var PlaceBlockType = message.MakeTypeBuilder[PlaceBlock]().
	WithKind(6).
	WithDirection(message.ClientToServer).
	WithFields(resolve.DropField("ship",
		func(m *PlaceBlock) *netid.Ref { return &m.Ship })).
	WithSender(func(m *PlaceBlock) *transport.ConnID { return &m.Sender }).
	Build("PlaceBlock")

var RemoveBlockType = message.MakeTypeBuilder[RemoveBlock]().
	WithKind(7).
	WithDirection(message.ClientToServer).
	WithFields(resolve.DropField("ship",
		func(m *RemoveBlock) *netid.Ref { return &m.Ship })).
	WithSender(func(m *RemoveBlock) *transport.ConnID { return &m.Sender }).
	Build("RemoveBlock")

var BlockUpdateType = message.MakeTypeBuilder[BlockUpdate]().
	WithKind(8).
	WithDirection(message.ServerToClient).
	WithFields(resolve.DropField("ship",
		func(m *BlockUpdate) *netid.Ref { return &m.Ship })).
	Build("BlockUpdate")

var BlockRemovedType = message.MakeTypeBuilder[BlockRemoved]().
	WithKind(9).
	WithDirection(message.ServerToClient).
	WithFields(resolve.DropField("ship",
		func(m *BlockRemoved) *netid.Ref { return &m.Ship })).
	Build("BlockRemoved")

var TryEnterShipType = message.MakeTypeBuilder[TryEnterShip]().
	WithKind(10).
	WithDirection(message.ClientToServer).
	WithFields(resolve.DropField("ship",
		func(m *TryEnterShip) *netid.Ref { return &m.Ship })).
	WithSender(func(m *TryEnterShip) *transport.ConnID { return &m.Sender }).
	Build("TryEnterShip")

var TryLeaveShipType = message.MakeTypeBuilder[TryLeaveShip]().
	WithKind(11).
	WithDirection(message.ClientToServer).
	WithFields(resolve.DropField("ship",
		func(m *TryLeaveShip) *netid.Ref { return &m.Ship })).
	WithSender(func(m *TryLeaveShip) *transport.ConnID { return &m.Sender }).
	Build("TryLeaveShip")

var EnteredShipType = message.MakeTypeBuilder[EnteredShip]().
	WithKind(12).
	WithDirection(message.ServerToClient).
	WithFields(
		resolve.DropField("ship",
			func(m *EnteredShip) *netid.Ref { return &m.Ship }),
		resolve.IgnoreField("pilot_body",
			func(m *EnteredShip) **netid.Ref { return &m.PilotBody }),
	).
	Build("EnteredShip")

var LeftShipType = message.MakeTypeBuilder[LeftShip]().
	WithKind(13).
	WithDirection(message.ServerToClient).
	WithFields(resolve.DropField("ship",
		func(m *LeftShip) *netid.Ref { return &m.Ship })).
	Build("LeftShip")

var ShipThrustType = message.MakeTypeBuilder[ShipThrust]().
	WithKind(14).
	WithDirection(message.ClientToServer).
	WithFields(resolve.DropField("ship",
		func(m *ShipThrust) *netid.Ref { return &m.Ship })).
	WithSender(func(m *ShipThrust) *transport.ConnID { return &m.Sender }).
	Build("ShipThrust")

var ShipDespawnType = message.MakeTypeBuilder[ShipDespawn]().
	WithKind(15).
	WithDirection(message.ServerToClient).
	WithFields(resolve.DropField("ship",
		func(m *ShipDespawn) *netid.Ref { return &m.Ship })).
	Build("ShipDespawn")

// NewRegistry returns a registry holding the whole game protocol. Game
// servers and clients register the same types, so its fingerprint is the one
// they present during the handshake.
func NewRegistry() *message.Registry {
	r := message.NewRegistry()

	for _, d := range []message.Descriptor{
		PlayerSpawnType,
		PlayerDespawnType,
		PlayerMoveType,
		ShipSpawnType,
		ShipPositionType,
		PlaceBlockType,
		RemoveBlockType,
		BlockUpdateType,
		BlockRemovedType,
		TryEnterShipType,
		TryLeaveShipType,
		EnteredShipType,
		LeftShipType,
		ShipThrustType,
		ShipDespawnType,
	} {
		r.Register(d)
	}

	return r
}
