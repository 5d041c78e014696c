package netid

import "log"

// Map is a bidirectional mapping between local handles and wire identifiers.
// Every registered handle has exactly one ID and every registered ID belongs
// to exactly one handle.
//
// A Map is not safe for concurrent use. It is owned by the tick pipeline of a
// single side.
type Map struct {
	gen     Generator
	local   map[Handle]ID
	network map[ID]Handle
}

// NewMap creates an empty map that draws IDs from the default random
// generator.
func NewMap() *Map {
	return NewMapWithGenerator(RandomGenerator{})
}

// NewMapWithGenerator creates an empty map that draws IDs from gen.
func NewMapWithGenerator(gen Generator) *Map {
	return &Map{
		gen:     gen,
		local:   make(map[Handle]ID),
		network: make(map[ID]Handle),
	}
}

// Insert registers h under a fresh ID and returns it. If h is already
// registered, its existing ID is returned.
func (m *Map) Insert(h Handle) ID {
	if id, found := m.local[h]; found {
		return id
	}

	id := m.gen.Generate()
	for id == NoID || m.hasID(id) {
		id = m.gen.Generate()
	}

	m.local[h] = id
	m.network[id] = h

	return id
}

// InsertWithID registers h under an ID received from the remote side. It
// panics if the ID is already registered, or if h is already registered under
// another ID.
func (m *Map) InsertWithID(h Handle, id ID) {
	if id == NoID {
		log.Panicf("cannot register handle %d with %s", h, id)
	}

	if existing, found := m.network[id]; found {
		log.Panicf(
			"%s is already registered to handle %d, cannot register handle %d",
			id, existing, h)
	}

	if existing, found := m.local[h]; found {
		log.Panicf(
			"handle %d is already registered as %s, cannot register as %s",
			h, existing, id)
	}

	m.local[h] = id
	m.network[id] = h
}

// FromLocal returns the ID registered for h.
func (m *Map) FromLocal(h Handle) (ID, bool) {
	id, found := m.local[h]
	return id, found
}

// FromWire returns the handle registered under id.
func (m *Map) FromWire(id ID) (Handle, bool) {
	h, found := m.network[id]
	return h, found
}

// Remove deregisters h. Removing an unregistered handle does nothing.
func (m *Map) Remove(h Handle) {
	id, found := m.local[h]
	if !found {
		return
	}

	delete(m.local, h)
	delete(m.network, id)
}

// Len returns the number of registered pairs.
func (m *Map) Len() int {
	return len(m.local)
}

// Each calls fn for every registered pair, in no particular order.
func (m *Map) Each(fn func(h Handle, id ID)) {
	for h, id := range m.local {
		fn(h, id)
	}
}

func (m *Map) hasID(id ID) bool {
	_, found := m.network[id]
	return found
}
