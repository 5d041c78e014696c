package message

import (
	"fmt"
	"log"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/spacegame/netsync/resolve"
	"github.com/spacegame/netsync/transport"
)

// Info describes a registered message type.
type Info struct {
	Kind      Kind
	Name      string
	Channel   transport.ChannelID
	Direction Direction
	Fields    []resolve.FieldInfo
	HasSender bool
	GoType    reflect.Type
}

// A Descriptor describes a message type.
type Descriptor interface {
	Info() Info
}

// Type binds a Go type to its kind, direction, channel and resolution table.
type Type[T any] struct {
	info  Info
	table resolve.Table[T]
}

// Info returns the description of the type.
func (t *Type[T]) Info() Info {
	return t.info
}

// Kind returns the kind tag.
func (t *Type[T]) Kind() Kind {
	return t.info.Kind
}

// Name returns the name of the type.
func (t *Type[T]) Name() string {
	return t.info.Name
}

// Channel returns the channel the type is sent on.
func (t *Type[T]) Channel() transport.ChannelID {
	return t.info.Channel
}

// Direction returns the direction of the type.
func (t *Type[T]) Direction() Direction {
	return t.info.Direction
}

// Table returns the resolution table.
func (t *Type[T]) Table() resolve.Table[T] {
	return t.table
}

// Encode serializes msg and wraps it into an envelope.
func (t *Type[T]) Encode(msg *T) ([]byte, error) {
	payload, err := Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("cannot encode %s: %w", t.info.Name, err)
	}

	return EncodeEnvelope(t.info.Kind, payload)
}

// Decode deserializes the payload of an envelope of this type.
func (t *Type[T]) Decode(payload []byte) (T, error) {
	var msg T

	if err := Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("cannot decode %s: %w", t.info.Name, err)
	}

	return msg, nil
}

// TypeBuilder can build message types.
type TypeBuilder[T any] struct {
	kind      Kind
	kindSet   bool
	direction Direction
	channel   transport.ChannelID
	fields    []resolve.Field[T]
	sender    func(*T) *transport.ConnID
}

// MakeTypeBuilder creates a TypeBuilder that sends on the reliable channel.
func MakeTypeBuilder[T any]() TypeBuilder[T] {
	return TypeBuilder[T]{
		channel: ReliableChannel,
	}
}

// WithKind sets the kind tag.
func (b TypeBuilder[T]) WithKind(kind Kind) TypeBuilder[T] {
	b.kind = kind
	b.kindSet = true
	return b
}

// WithDirection sets which side sends the type.
func (b TypeBuilder[T]) WithDirection(d Direction) TypeBuilder[T] {
	b.direction = d
	return b
}

// WithChannel sets the channel the type is sent on.
func (b TypeBuilder[T]) WithChannel(ch transport.ChannelID) TypeBuilder[T] {
	b.channel = ch
	return b
}

// WithFields declares the entity-carrying fields.
func (b TypeBuilder[T]) WithFields(fields ...resolve.Field[T]) TypeBuilder[T] {
	b.fields = append([]resolve.Field[T]{}, fields...)
	return b
}

// WithSender declares the field that carries the connection ID of the
// sending client.
func (b TypeBuilder[T]) WithSender(
	sender func(*T) *transport.ConnID,
) TypeBuilder[T] {
	b.sender = sender
	return b
}

// Build creates the type.
func (b TypeBuilder[T]) Build(name string) *Type[T] {
	if name == "" {
		log.Panic("message type name cannot be empty")
	}

	if !b.kindSet {
		log.Panicf("message type %s has no kind", name)
	}

	switch b.direction {
	case ClientToServer, ServerToClient, Both:
	default:
		log.Panicf("message type %s has no direction", name)
	}

	goType := reflect.TypeOf((*T)(nil)).Elem()
	if goType.Kind() != reflect.Struct {
		log.Panicf("message type %s must be a struct, got %s", name, goType)
	}

	if path, found := findMap(goType, name, map[reflect.Type]bool{}); found {
		log.Panicf("%s is a map, use SortedMap instead", path)
	}

	table := resolve.NewTable(b.fields...)
	if b.sender != nil {
		table = table.WithSender(b.sender)
	}

	return &Type[T]{
		info: Info{
			Kind:      b.kind,
			Name:      name,
			Channel:   b.channel,
			Direction: b.direction,
			Fields:    table.Fields(),
			HasSender: table.HasSender(),
			GoType:    goType,
		},
		table: table,
	}
}

var customEncoderType = reflect.TypeOf((*msgpack.CustomEncoder)(nil)).Elem()

// findMap returns the path of the first plain map reachable from t.
func findMap(
	t reflect.Type,
	path string,
	visiting map[reflect.Type]bool,
) (string, bool) {
	if t.Implements(customEncoderType) {
		return "", false
	}

	switch t.Kind() {
	case reflect.Map:
		return path, true
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return findMap(t.Elem(), path, visiting)
	case reflect.Struct:
		if visiting[t] {
			return "", false
		}

		visiting[t] = true
		defer delete(visiting, t)

		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}

			if p, found := findMap(f.Type, path+"."+f.Name, visiting); found {
				return p, true
			}
		}
	}

	return "", false
}
