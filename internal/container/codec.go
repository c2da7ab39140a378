package container

import (
	"fmt"
	"reflect"

	"github.com/hengadev/savex/internal/archiverr"
	"github.com/hengadev/savex/internal/reflection"
	"github.com/hengadev/savex/internal/serialization"
)

// Codec turns values into tagged values and back, enforcing the type tag
// when type checking is on.
type Codec struct {
	values       *serialization.Codec
	typeChecking bool
}

func NewCodec(values *serialization.Codec, typeChecking bool) *Codec {
	return &Codec{values: values, typeChecking: typeChecking}
}

// Tag encodes value under its dynamic type.
func (c *Codec) Tag(value any) (TaggedValue, error) {
	if value == nil {
		return TaggedValue{}, archiverr.NewUnsupportedTypeError("value", "nil", archiverr.Encode)
	}
	return c.TagValue(reflect.ValueOf(value))
}

// TagValue encodes v under its static type.
func (c *Codec) TagValue(v reflect.Value) (TaggedValue, error) {
	data, err := c.values.Encode(v)
	if err != nil {
		return TaggedValue{}, err
	}
	return TaggedValue{
		Type: c.values.Registry().Register(v.Type()),
		Data: data,
	}, nil
}

// DecodeInto decodes tv into target, which must be settable. Interface
// targets receive a value of the tagged type.
func (c *Codec) DecodeInto(key string, tv TaggedValue, target reflect.Value) error {
	t := target.Type()

	if t.Kind() == reflect.Interface {
		dynamic, ok := c.values.Registry().Resolve(tv.Type)
		if !ok {
			return fmt.Errorf("%w: %s stored under '%s'", archiverr.ErrUnknownType, tv.Type, key)
		}
		if !dynamic.AssignableTo(t) {
			return archiverr.NewTypeMismatchError(key, reflection.TypeName(t), tv.Type)
		}
		elem := reflect.New(dynamic).Elem()
		if err := c.values.Decode(tv.Data, elem); err != nil {
			return fmt.Errorf("decode '%s': %w", key, err)
		}
		target.Set(elem)
		return nil
	}

	if c.typeChecking {
		if want := reflection.TypeName(t); want != tv.Type {
			return archiverr.NewTypeMismatchError(key, want, tv.Type)
		}
	}
	if err := c.values.Decode(tv.Data, target); err != nil {
		return fmt.Errorf("decode '%s': %w", key, err)
	}
	return nil
}

// DecodeAs decodes tv into a new T.
func DecodeAs[T any](c *Codec, key string, tv TaggedValue) (T, error) {
	var out T
	if err := c.DecodeInto(key, tv, reflect.ValueOf(&out).Elem()); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// DecodeTarget decodes tv into the value target points to.
func (c *Codec) DecodeTarget(key string, tv TaggedValue, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, got %T", target)
	}
	return c.DecodeInto(key, tv, rv.Elem())
}
