// Package game implements the space building game that runs on top of the
// synchronization layer: players walking around, ships made of blocks, and
// the pilots that fly them.
package game

import (
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"

	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/transport"
	"github.com/spacegame/netsync/world"
)

// Transform is the placement of an object in the plane.
type Transform struct {
	X, Y  float64
	Angle float64
}

// Velocity is the rate of change of a Transform, per second.
type Velocity struct {
	X, Y    float64
	Angular float64
}

// IsZero tells if the object is at rest.
func (v Velocity) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Angular == 0
}

// Force is the thrust a pilot applies to a ship.
type Force struct {
	X, Y   float64
	Torque float64
}

// Player marks the body of a connected player.
type Player struct {
	Conn transport.ConnID
	Name string
}

// Ship marks a ship. A ship has at most one pilot.
type Ship struct {
	Pilot    transport.ConnID
	HasPilot bool

	// Body is the body of the pilot, if known locally.
	Body netid.Handle
}

// A list of all the components used by the game.
var (
	TransformComponent = donburi.NewComponentType[Transform]()
	VelocityComponent  = donburi.NewComponentType[Velocity]()
	ThrustComponent    = donburi.NewComponentType[Force]()
	PlayerComponent    = donburi.NewComponentType[Player]()
	ShipComponent      = donburi.NewComponentType[Ship]()
	BlockMapComponent  = donburi.NewComponentType[BlockMap]()
)

var shipQuery = donburi.NewQuery(filter.Contains(ShipComponent, BlockMapComponent))

// set adds a component to an entry if it is missing and sets its value.
func set[T any](entry *donburi.Entry, c *donburi.ComponentType[T], v T) {
	if !entry.HasComponent(c) {
		entry.AddComponent(c)
	}

	c.SetValue(entry, v)
}

// shipEntry returns the entry of a live ship, or nil if the handle does not
// point to a ship.
func shipEntry(w *world.ECS, h netid.Handle) *donburi.Entry {
	entry := w.Lookup(h)
	if entry == nil || !entry.HasComponent(ShipComponent) {
		return nil
	}

	return entry
}

// ships lists the handles of all ships.
func ships(w *world.ECS) []netid.Handle {
	var list []netid.Handle

	shipQuery.Each(w.World, func(entry *donburi.Entry) {
		list = append(list, world.Handle(entry))
	})

	return list
}
