package world

import (
	"slices"

	"github.com/yohamta/donburi"

	"github.com/spacegame/netsync/netid"
)

// NetworkIDData is the tag attached to networked objects.
type NetworkIDData struct {
	ID netid.ID
}

// NetworkID is the component that carries the wire identifier of an object.
var NetworkID = donburi.NewComponentType[NetworkIDData]()

// ECS is a World backed by a donburi entity-component system. Handles are
// donburi entities.
type ECS struct {
	donburi.World
}

// NewECS creates an empty world.
func NewECS() *ECS {
	return &ECS{World: donburi.NewWorld()}
}

// Spawn creates an entity that only carries an empty NetworkID tag.
func (w *ECS) Spawn() netid.Handle {
	return w.SpawnWith()
}

// SpawnWith creates an entity with the given components and an empty
// NetworkID tag.
func (w *ECS) SpawnWith(components ...donburi.IComponentType) netid.Handle {
	if !slices.Contains(components, donburi.IComponentType(NetworkID)) {
		components = append(components, NetworkID)
	}

	return netid.Handle(w.Create(components...))
}

// Despawn removes an entity if it is still alive.
func (w *ECS) Despawn(h netid.Handle) {
	if !w.Alive(h) {
		return
	}

	w.Remove(donburi.Entity(h))
}

// Alive tells if the entity exists.
func (w *ECS) Alive(h netid.Handle) bool {
	return w.Valid(donburi.Entity(h))
}

// SetNetworkID adds or updates the NetworkID component of an entity.
func (w *ECS) SetNetworkID(h netid.Handle, id netid.ID) {
	entry := w.Lookup(h)
	if entry == nil {
		return
	}

	if !entry.HasComponent(NetworkID) {
		entry.AddComponent(NetworkID)
	}

	NetworkID.SetValue(entry, NetworkIDData{ID: id})
}

// NetworkID returns the wire identifier tag of an entity. An empty tag is
// reported as not found.
func (w *ECS) NetworkID(h netid.Handle) (netid.ID, bool) {
	entry := w.Lookup(h)
	if entry == nil || !entry.HasComponent(NetworkID) {
		return netid.NoID, false
	}

	id := NetworkID.Get(entry).ID

	return id, id != netid.NoID
}

// Lookup returns the entry of a live entity, or nil.
func (w *ECS) Lookup(h netid.Handle) *donburi.Entry {
	if !w.Alive(h) {
		return nil
	}

	return w.Entry(donburi.Entity(h))
}

// Handle converts an entry to a handle.
func Handle(entry *donburi.Entry) netid.Handle {
	return netid.Handle(entry.Entity())
}
