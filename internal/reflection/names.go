package reflection

import (
	"reflect"
	"strconv"
	"strings"
)

var builtinTypes = map[string]reflect.Type{
	"bool":       reflect.TypeOf(false),
	"int":        reflect.TypeOf(int(0)),
	"int8":       reflect.TypeOf(int8(0)),
	"int16":      reflect.TypeOf(int16(0)),
	"int32":      reflect.TypeOf(int32(0)),
	"int64":      reflect.TypeOf(int64(0)),
	"uint":       reflect.TypeOf(uint(0)),
	"uint8":      reflect.TypeOf(uint8(0)),
	"uint16":     reflect.TypeOf(uint16(0)),
	"uint32":     reflect.TypeOf(uint32(0)),
	"uint64":     reflect.TypeOf(uint64(0)),
	"float32":    reflect.TypeOf(float32(0)),
	"float64":    reflect.TypeOf(float64(0)),
	"complex64":  reflect.TypeOf(complex64(0)),
	"complex128": reflect.TypeOf(complex128(0)),
	"string":     reflect.TypeOf(""),
	"any":        reflect.TypeOf((*any)(nil)).Elem(),
	"error":      reflect.TypeOf((*error)(nil)).Elem(),
}

// TypeName returns the stable identifier written as the type tag of t:
// package path plus name for named types, Go syntax for composites.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if t.Name() != "" {
		if t.PkgPath() != "" {
			return t.PkgPath() + "." + t.Name()
		}
		return t.Name()
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + TypeName(t.Elem())
	case reflect.Slice:
		return "[]" + TypeName(t.Elem())
	case reflect.Array:
		return "[" + strconv.Itoa(t.Len()) + "]" + TypeName(t.Elem())
	case reflect.Map:
		return "map[" + TypeName(t.Key()) + "]" + TypeName(t.Elem())
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return "any"
		}
	}
	return t.String()
}

// Register records t under its type name so payloads tagged with that name
// can be decoded later, and returns the name.
func (r *Registry) Register(t reflect.Type) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(t)
}

func (r *Registry) registerLocked(t reflect.Type) string {
	name := TypeName(t)
	if _, ok := r.names[name]; !ok {
		r.names[name] = t
	}
	return name
}

// Resolve maps a type name back to a type. Registered names win; builtin and
// composite names of resolvable element types are parsed.
func (r *Registry) Resolve(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(name)
}

func (r *Registry) resolveLocked(name string) (reflect.Type, bool) {
	if t, ok := r.names[name]; ok {
		return t, true
	}
	if t, ok := builtinTypes[name]; ok {
		return t, true
	}

	switch {
	case strings.HasPrefix(name, "*"):
		elem, ok := r.resolveLocked(name[1:])
		if !ok {
			return nil, false
		}
		return reflect.PointerTo(elem), true
	case strings.HasPrefix(name, "[]"):
		elem, ok := r.resolveLocked(name[2:])
		if !ok {
			return nil, false
		}
		return reflect.SliceOf(elem), true
	case strings.HasPrefix(name, "["):
		end := strings.IndexByte(name, ']')
		if end < 0 {
			return nil, false
		}
		n, err := strconv.Atoi(name[1:end])
		if err != nil || n < 0 {
			return nil, false
		}
		elem, ok := r.resolveLocked(name[end+1:])
		if !ok {
			return nil, false
		}
		return reflect.ArrayOf(n, elem), true
	case strings.HasPrefix(name, "map["):
		end := matchingBracket(name, 3)
		if end < 0 {
			return nil, false
		}
		key, ok := r.resolveLocked(name[4:end])
		if !ok {
			return nil, false
		}
		elem, ok := r.resolveLocked(name[end+1:])
		if !ok {
			return nil, false
		}
		if !key.Comparable() {
			return nil, false
		}
		return reflect.MapOf(key, elem), true
	}
	return nil, false
}

// matchingBracket returns the index of the ']' closing the '[' at open.
func matchingBracket(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
