// Package world defines the simulation boundary: the engine that owns live
// objects and their handles.
package world

import "github.com/spacegame/netsync/netid"

// World allocates and deletes objects and tags them with their wire
// identifiers.
type World interface {
	// Spawn creates an empty object and returns its handle.
	Spawn() netid.Handle

	// Despawn deletes an object. Deleting a dead handle does nothing.
	Despawn(h netid.Handle)

	// Alive tells if the handle refers to a live object.
	Alive(h netid.Handle) bool

	// SetNetworkID tags an object with its wire identifier.
	SetNetworkID(h netid.Handle, id netid.ID)

	// NetworkID returns the tag set by SetNetworkID.
	NetworkID(h netid.Handle) (netid.ID, bool)
}
