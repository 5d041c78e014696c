package message

import (
	"cmp"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

// A SortedMap is a map that is encoded with its keys in increasing order.
// Message types use it in place of plain maps.
type SortedMap[K cmp.Ordered, V any] map[K]V

// EncodeMsgpack writes the map with sorted keys.
func (m SortedMap[K, V]) EncodeMsgpack(enc *msgpack.Encoder) error {
	if m == nil {
		return enc.EncodeNil()
	}

	if err := enc.EncodeMapLen(len(m)); err != nil {
		return err
	}

	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		if err := enc.Encode(k); err != nil {
			return err
		}

		if err := enc.Encode(m[k]); err != nil {
			return err
		}
	}

	return nil
}

// DecodeMsgpack reads a map written by EncodeMsgpack.
func (m *SortedMap[K, V]) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}

	if n < 0 {
		*m = nil
		return nil
	}

	out := make(SortedMap[K, V], n)
	for i := 0; i < n; i++ {
		var (
			k K
			v V
		)

		if err := dec.Decode(&k); err != nil {
			return err
		}

		if err := dec.Decode(&v); err != nil {
			return err
		}

		out[k] = v
	}

	*m = out

	return nil
}
