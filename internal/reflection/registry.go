package reflection

import (
	"encoding"
	"reflect"
	"sync"
)

// Kind is the encoding shape of a type.
type Kind uint8

const (
	KindUnsupported Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindComplex
	KindString
	KindBytes
	KindSlice
	KindArray
	KindMap
	KindPointer
	KindInterface
	KindStruct
	KindBinary
)

var (
	binaryMarshalerType   = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
	binaryUnmarshalerType = reflect.TypeOf((*encoding.BinaryUnmarshaler)(nil)).Elem()
)

// Descriptor is the memoized serialization shape of one type.
type Descriptor struct {
	Type        reflect.Type
	Name        string
	Kind        Kind
	Members     []Member
	Unsupported bool

	byName map[string]int
}

// Member looks a member up by its serialized name.
func (d *Descriptor) Member(name string) (Member, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Member{}, false
	}
	return d.Members[i], true
}

type descriptorKey struct {
	t    reflect.Type
	safe bool
}

type serializableState uint8

const (
	stateInProgress serializableState = iota + 1
	stateSerializable
	stateNotSerializable
)

// Registry memoizes descriptors per (type, safe mode) and owns the type
// name table used to resolve interface payloads. It is safe for concurrent
// use.
type Registry struct {
	mu           sync.RWMutex
	descriptors  map[descriptorKey]*Descriptor
	serializable map[reflect.Type]serializableState
	names        map[string]reflect.Type
}

func NewRegistry() *Registry {
	return &Registry{
		descriptors:  make(map[descriptorKey]*Descriptor),
		serializable: make(map[reflect.Type]serializableState),
		names:        make(map[string]reflect.Type),
	}
}

// Describe returns the descriptor of t, computing it on first use.
func (r *Registry) Describe(t reflect.Type, safe bool) *Descriptor {
	key := descriptorKey{t: t, safe: safe}

	r.mu.RLock()
	d, ok := r.descriptors[key]
	r.mu.RUnlock()
	if ok {
		return d
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.descriptors[key]; ok {
		return d
	}

	d = &Descriptor{Type: t, Kind: kindOf(t)}
	if t != nil {
		d.Name = r.registerLocked(t)
	}
	d.Unsupported = t == nil || !r.isSerializableLocked(t)
	if d.Kind == KindStruct {
		d.Members = r.collectLocked(t, safe, nil)
		d.byName = make(map[string]int, len(d.Members))
		for i, m := range d.Members {
			d.byName[m.Name] = i
		}
	}
	r.descriptors[key] = d
	return d
}

// Members returns the serializable members of t in stable order. When names
// is non-empty only members with those names are returned. Types that cannot
// be introspected yield an empty list.
func (r *Registry) Members(t reflect.Type, safe bool, names ...string) []Member {
	if len(names) == 0 {
		d := r.Describe(t, safe)
		return append([]Member{}, d.Members...)
	}

	filter := make(map[string]struct{}, len(names))
	for _, n := range names {
		filter[n] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collectLocked(t, safe, filter)
}

// IsSerializable reports whether values of t can be archived.
func (r *Registry) IsSerializable(t reflect.Type) bool {
	if t == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isSerializableLocked(t)
}

func (r *Registry) isSerializableLocked(t reflect.Type) bool {
	if state, ok := r.serializable[t]; ok {
		// in-progress types are optimistically serializable so that
		// recursive type graphs terminate
		return state != stateNotSerializable
	}

	r.serializable[t] = stateInProgress
	ok := r.computeSerializableLocked(t)
	if ok {
		r.serializable[t] = stateSerializable
	} else {
		r.serializable[t] = stateNotSerializable
	}
	return ok
}

func (r *Registry) computeSerializableLocked(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String, reflect.Interface:
		return true
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return r.isSerializableLocked(t.Elem())
	case reflect.Map:
		return r.isSerializableLocked(t.Key()) && r.isSerializableLocked(t.Elem())
	case reflect.Struct:
		return !optedOut(t)
	default:
		return false
	}
}

// optedOut reports whether a struct carries the type level marker
// `_ struct{} archive:"-"`.
func optedOut(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == "_" && parseTag(f.Tag.Get(TagName)).ignore {
			return true
		}
	}
	return false
}

// IsBinary reports whether t round-trips through MarshalBinary and
// UnmarshalBinary instead of reflection.
func IsBinary(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return false
	}
	pt := reflect.PointerTo(t)
	return (t.Implements(binaryMarshalerType) || pt.Implements(binaryMarshalerType)) &&
		pt.Implements(binaryUnmarshalerType)
}

func kindOf(t reflect.Type) Kind {
	if t == nil {
		return KindUnsupported
	}
	if IsBinary(t) {
		return KindBinary
	}

	switch t.Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindUint
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.Complex64, reflect.Complex128:
		return KindComplex
	case reflect.String:
		return KindString
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !IsBinary(t.Elem()) {
			return KindBytes
		}
		return KindSlice
	case reflect.Array:
		return KindArray
	case reflect.Map:
		return KindMap
	case reflect.Pointer:
		return KindPointer
	case reflect.Interface:
		return KindInterface
	case reflect.Struct:
		return KindStruct
	default:
		return KindUnsupported
	}
}
