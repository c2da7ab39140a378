package reflection

import (
	"fmt"
	"reflect"
	"unsafe"
)

// MemberKind tells whether a member is backed by a struct field or by a
// getter/setter method pair.
type MemberKind uint8

const (
	FieldMember MemberKind = iota
	PropertyMember
)

func (k MemberKind) String() string {
	if k == PropertyMember {
		return "property"
	}
	return "field"
}

// Member is a uniform view over a field or a property. Owners passed to its
// accessors must be addressable struct values of the declaring type.
type Member struct {
	Name     string
	Type     reflect.Type
	Kind     MemberKind
	Exported bool

	index  []int
	getter string
	setter string
}

func (m Member) IsField() bool { return m.Kind == FieldMember }

// Get returns the current member value of owner.
func (m Member) Get(owner reflect.Value) (v reflect.Value, err error) {
	if m.Kind == FieldMember {
		return m.field(owner), nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("property %s getter panicked: %v", m.Name, r)
		}
	}()
	out := owner.Addr().MethodByName(m.getter).Call(nil)
	return out[0], nil
}

// Target returns a settable value for field members. Properties have no
// storage of their own and report false.
func (m Member) Target(owner reflect.Value) (reflect.Value, bool) {
	if m.Kind != FieldMember {
		return reflect.Value{}, false
	}
	return m.field(owner), true
}

// Set assigns value to the member of owner.
func (m Member) Set(owner, value reflect.Value) (err error) {
	if m.Kind == FieldMember {
		m.field(owner).Set(value)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("property %s setter panicked: %v", m.Name, r)
		}
	}()
	owner.Addr().MethodByName(m.setter).Call([]reflect.Value{value})
	return nil
}

// field walks the index path. Unexported fields (and fields promoted through
// unexported embedded structs) are reached through their address.
func (m Member) field(owner reflect.Value) reflect.Value {
	f := owner.FieldByIndex(m.index)
	if !f.CanSet() && f.CanAddr() {
		f = reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
	}
	return f
}
