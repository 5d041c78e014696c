package message

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Marshal encodes v with msgpack. Structs are encoded as arrays in field
// declaration order. Types built with TypeBuilder hold no plain maps, so
// equal values always produce equal bytes.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := msgpack.NewEncoder(&buf)
	enc.UseArrayEncodedStructs(true)
	enc.SetSortMapKeys(true)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes data produced by Marshal into v. The data must hold
// exactly one value. When v points to a struct, the encoded array must have
// one element per field.
func Unmarshal(data []byte, v any) error {
	if n, ok := arrayFields(v); ok {
		got, err := msgpack.NewDecoder(bytes.NewReader(data)).DecodeArrayLen()
		if err != nil {
			return err
		}

		if got != n {
			return fmt.Errorf("expected %d fields, got %d", n, got)
		}
	}

	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)

	if err := dec.Decode(v); err != nil {
		return err
	}

	if r.Len() > 0 {
		return fmt.Errorf("%d trailing bytes", r.Len())
	}

	return nil
}

var customDecoderType = reflect.TypeOf((*msgpack.CustomDecoder)(nil)).Elem()

// arrayFields returns the number of array elements a struct pointed to by v
// is encoded with. Structs with embedded fields are not counted.
func arrayFields(v any) (int, bool) {
	t := reflect.TypeOf(v)
	if t == nil || t.Kind() != reflect.Pointer {
		return 0, false
	}

	if t.Implements(customDecoderType) || t.Elem().Kind() != reflect.Struct {
		return 0, false
	}

	n := 0
	t = t.Elem()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			return 0, false
		}

		if f.IsExported() && f.Tag.Get("msgpack") != "-" {
			n++
		}
	}

	return n, true
}

// An Envelope is the outer layer of a message on the wire. It carries the
// kind so that the receiver can dispatch before decoding the payload.
type Envelope struct {
	Kind Kind
	Data []byte
}

// EncodeEnvelope wraps an encoded payload.
func EncodeEnvelope(kind Kind, payload []byte) ([]byte, error) {
	return Marshal(Envelope{Kind: kind, Data: payload})
}

// DecodeEnvelope unwraps an envelope without decoding its payload.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope

	if err := Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed envelope: %w", err)
	}

	return env, nil
}
