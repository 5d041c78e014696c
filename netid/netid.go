// Package netid maps local object handles to identifiers that are stable
// across the network.
//
// Each side of a connection owns its own handle space. Handles are engine
// owned and may be reused after an object is deleted, so they are never sent
// over the wire. Instead, every object that crosses the network is registered
// in a Map under a randomly drawn ID that is unique among the objects
// currently registered on that side.
package netid

import "fmt"

// A Handle is an opaque, engine-owned identifier of a live object. Handles
// are not comparable across the network and may be reused after deletion.
type Handle uint64

// An ID is a wire identifier of an object.
type ID uint64

// NoID is never generated. It marks the absence of an identifier.
const NoID ID = 0

func (id ID) String() string {
	return fmt.Sprintf("net#%016x", uint64(id))
}

// A Ref is an entity-carrying message field. While a message is handled by
// local code a Ref holds a Handle; while the message is on the wire it holds
// an ID. The resolve package rewrites Refs in place between the two forms.
type Ref uint64

// RefTo creates a Ref holding a local handle.
func RefTo(h Handle) Ref {
	return Ref(h)
}

// RefToID creates a Ref holding a wire identifier.
func RefToID(id ID) Ref {
	return Ref(id)
}

// OptionalRefTo creates an optional Ref holding a local handle.
func OptionalRefTo(h Handle) *Ref {
	r := RefTo(h)
	return &r
}

// Handle interprets the Ref as a local handle.
func (r Ref) Handle() Handle {
	return Handle(r)
}

// ID interprets the Ref as a wire identifier.
func (r Ref) ID() ID {
	return ID(r)
}
