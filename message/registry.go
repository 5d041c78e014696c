package message

import (
	"encoding/hex"
	"fmt"
	"log"
	"reflect"
	"slices"
	"strings"
	"sync"

	"lukechampine.com/blake3"

	"github.com/spacegame/netsync/transport"
)

// A Registry maps kinds to message types. Both peers must register the same
// types under the same kinds.
type Registry struct {
	lock   sync.RWMutex
	byKind map[Kind]Info
	byName map[string]Kind
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKind: make(map[Kind]Info),
		byName: make(map[string]Kind),
	}
}

// Register adds a message type. It panics if the kind or the name is taken.
func (r *Registry) Register(d Descriptor) {
	r.lock.Lock()
	defer r.lock.Unlock()

	info := d.Info()

	if existing, found := r.byKind[info.Kind]; found {
		log.Panicf("kind %d of %s is already registered by %s",
			info.Kind, info.Name, existing.Name)
	}

	if _, found := r.byName[info.Name]; found {
		log.Panicf("message type %s is already registered", info.Name)
	}

	r.byKind[info.Kind] = info
	r.byName[info.Name] = info.Kind
}

// Lookup returns the type registered under a kind.
func (r *Registry) Lookup(kind Kind) (Info, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	info, found := r.byKind[kind]

	return info, found
}

// Infos lists the registered types ordered by kind.
func (r *Registry) Infos() []Info {
	r.lock.RLock()
	defer r.lock.RUnlock()

	infos := make([]Info, 0, len(r.byKind))
	for _, info := range r.byKind {
		infos = append(infos, info)
	}

	slices.SortFunc(infos, func(a, b Info) int {
		return int(a.Kind) - int(b.Kind)
	})

	return infos
}

// Channels lists the channels used by the registered types, in ascending
// order.
func (r *Registry) Channels() []transport.ChannelID {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var channels []transport.ChannelID
	for _, info := range r.byKind {
		if !slices.Contains(channels, info.Channel) {
			channels = append(channels, info.Channel)
		}
	}

	slices.Sort(channels)

	return channels
}

// Fingerprint hashes the registered types, including the layout of their Go
// types. Peers whose fingerprints differ cannot understand each other.
func (r *Registry) Fingerprint() string {
	h := blake3.New(32, nil)

	for _, info := range r.Infos() {
		fmt.Fprintf(h, "%d|%s|%d|%s|%t|",
			info.Kind, info.Name, info.Channel, info.Direction, info.HasSender)

		for _, f := range info.Fields {
			fmt.Fprintf(h, "%s:%s,", f.Name, f.Policy)
		}

		fmt.Fprintf(h, "|%s\n", layout(info.GoType, map[reflect.Type]bool{}))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func layout(t reflect.Type, visiting map[reflect.Type]bool) string {
	if t == nil {
		return "nil"
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + layout(t.Elem(), visiting)
	case reflect.Slice:
		return "[]" + layout(t.Elem(), visiting)
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), layout(t.Elem(), visiting))
	case reflect.Map:
		return fmt.Sprintf("map[%s]%s",
			layout(t.Key(), visiting), layout(t.Elem(), visiting))
	case reflect.Struct:
		if visiting[t] {
			return t.String()
		}

		visiting[t] = true
		defer delete(visiting, t)

		fields := make([]string, 0, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}

			fields = append(fields, f.Name+" "+layout(f.Type, visiting))
		}

		return "{" + strings.Join(fields, ";") + "}"
	default:
		return t.Kind().String()
	}
}
