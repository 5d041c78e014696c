// Package resolve translates the entity references carried by messages
// between local handles and wire identifiers.
//
// Every message type declares a Table listing its entity-carrying fields and
// what to do with each of them when a reference cannot be resolved:
//
//   - Drop discards the whole message.
//   - Create registers the reference. Outbound, the local handle gets a fresh
//     wire identifier. Inbound, a new local object is spawned and registered
//     under the received identifier.
//   - Ignore never blocks delivery. An optional reference that cannot be
//     resolved is cleared.
//
// Drop fields are resolved before Create fields, which are resolved before
// Ignore fields. A message that is dropped therefore never spawns objects or
// registers identifiers for its Create fields.
package resolve

import (
	"fmt"
	"log"
	"slices"

	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/transport"
	"github.com/spacegame/netsync/world"
)

// Policy decides what happens when a field cannot be resolved.
type Policy int

// A list of all missing-policies, in resolution order.
const (
	Drop Policy = iota
	Create
	Ignore
)

func (p Policy) String() string {
	switch p {
	case Drop:
		return "drop"
	case Create:
		return "create"
	case Ignore:
		return "ignore"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// A Field is an entity-carrying field of a message of type T.
type Field[T any] struct {
	name   string
	policy Policy
	ref    func(*T) *netid.Ref
	opt    func(*T) **netid.Ref
}

// DropField declares a required reference that discards the message when it
// cannot be resolved.
func DropField[T any](name string, ref func(*T) *netid.Ref) Field[T] {
	return Field[T]{name: name, policy: Drop, ref: ref}
}

// CreateField declares a required reference that is registered when it cannot
// be resolved.
func CreateField[T any](name string, ref func(*T) *netid.Ref) Field[T] {
	return Field[T]{name: name, policy: Create, ref: ref}
}

// IgnoreField declares an optional reference. Nil references are passed
// through. References that cannot be resolved are set to nil.
func IgnoreField[T any](name string, opt func(*T) **netid.Ref) Field[T] {
	return Field[T]{name: name, policy: Ignore, opt: opt}
}

// FieldInfo describes a field for introspection.
type FieldInfo struct {
	Name   string
	Policy Policy
}

// A Table holds the resolution rules of a message type.
type Table[T any] struct {
	fields []Field[T]
	sender func(*T) *transport.ConnID
}

// NewTable creates a table. The fields are reordered by policy. Fields with
// the same policy keep their declaration order.
func NewTable[T any](fields ...Field[T]) Table[T] {
	sorted := slices.Clone(fields)
	slices.SortStableFunc(sorted, func(a, b Field[T]) int {
		return int(a.policy) - int(b.policy)
	})

	for _, f := range sorted {
		if f.ref == nil && f.opt == nil {
			log.Panicf("field %s has no accessor", f.name)
		}
	}

	return Table[T]{fields: sorted}
}

// WithSender designates the field that receives the connection ID of the
// sender.
func (t Table[T]) WithSender(sender func(*T) *transport.ConnID) Table[T] {
	t.sender = sender
	return t
}

// Fields returns the fields in resolution order.
func (t Table[T]) Fields() []FieldInfo {
	infos := make([]FieldInfo, 0, len(t.fields))
	for _, f := range t.fields {
		infos = append(infos, FieldInfo{Name: f.name, Policy: f.policy})
	}

	return infos
}

// HasSender tells if the message type carries a sender field.
func (t Table[T]) HasSender() bool {
	return t.sender != nil
}

// StampSender writes conn into the sender field. It does nothing when the
// message type has no sender field.
func (t Table[T]) StampSender(msg *T, conn transport.ConnID) {
	if t.sender == nil {
		return
	}

	*t.sender(msg) = conn
}

// EntityToNetwork rewrites the local handles of msg into wire identifiers. It
// returns false if a Drop field has no registered identifier, in which case
// the message must not be sent. Identifiers registered for Create fields are
// also tagged on the object when w is not nil.
func (t Table[T]) EntityToNetwork(
	msg *T,
	ids *netid.Map,
	w world.World,
) bool {
	for _, f := range t.fields {
		switch f.policy {
		case Drop:
			ref := f.ref(msg)

			id, found := ids.FromLocal(ref.Handle())
			if !found {
				return false
			}

			*ref = netid.RefToID(id)
		case Create:
			ref := f.ref(msg)
			h := ref.Handle()

			id, found := ids.FromLocal(h)
			if !found {
				id = ids.Insert(h)
				if w != nil {
					w.SetNetworkID(h, id)
				}
			}

			*ref = netid.RefToID(id)
		case Ignore:
			opt := f.opt(msg)
			if *opt == nil {
				continue
			}

			id, found := ids.FromLocal((*opt).Handle())
			if !found {
				*opt = nil
				continue
			}

			r := netid.RefToID(id)
			*opt = &r
		}
	}

	return true
}

// NetworkToEntity rewrites the wire identifiers of msg into local handles. It
// returns false if a Drop field refers to an unknown identifier, in which case
// the message must be discarded. Unknown identifiers in Create fields spawn a
// new object in w.
func (t Table[T]) NetworkToEntity(
	msg *T,
	ids *netid.Map,
	w world.World,
) bool {
	for _, f := range t.fields {
		switch f.policy {
		case Drop:
			ref := f.ref(msg)

			h, found := ids.FromWire(ref.ID())
			if !found {
				return false
			}

			*ref = netid.RefTo(h)
		case Create:
			ref := f.ref(msg)
			id := ref.ID()

			if id == netid.NoID {
				return false
			}

			h, found := ids.FromWire(id)
			if !found {
				if w == nil {
					log.Panicf("field %s needs a world to create objects", f.name)
				}

				h = w.Spawn()
				ids.InsertWithID(h, id)
				w.SetNetworkID(h, id)
			}

			*ref = netid.RefTo(h)
		case Ignore:
			opt := f.opt(msg)
			if *opt == nil {
				continue
			}

			h, found := ids.FromWire((*opt).ID())
			if !found {
				*opt = nil
				continue
			}

			r := netid.RefTo(h)
			*opt = &r
		}
	}

	return true
}
