// Package serialization encodes typed values to the compact binary payloads
// stored inside containers, driven by the descriptors of the reflection
// registry.
package serialization

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/hengadev/savex/internal/archiverr"
	"github.com/hengadev/savex/internal/reflection"
)

const DefaultDepthLimit = 64

// Options control both encoding directions.
type Options struct {
	Safe       bool
	DepthLimit int
}

// Codec converts values to payload bytes and back. It holds no per-call
// state and may be shared between goroutines.
type Codec struct {
	registry *reflection.Registry
	opts     Options
}

func New(registry *reflection.Registry, opts Options) *Codec {
	if opts.DepthLimit <= 0 {
		opts.DepthLimit = DefaultDepthLimit
	}
	return &Codec{registry: registry, opts: opts}
}

func (c *Codec) Registry() *reflection.Registry { return c.registry }

// Marshal encodes value using its dynamic type.
func (c *Codec) Marshal(value any) ([]byte, error) {
	if value == nil {
		return nil, archiverr.NewUnsupportedTypeError("value", "nil", archiverr.Encode)
	}
	return c.Encode(reflect.ValueOf(value))
}

// Unmarshal decodes data into the value target points to.
func (c *Codec) Unmarshal(data []byte, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, got %T", target)
	}
	return c.Decode(data, rv.Elem())
}

// Encode encodes v according to its static type.
func (c *Codec) Encode(v reflect.Value) ([]byte, error) {
	return c.encode(nil, v, 0)
}

// Decode decodes data into v, which must be settable. Struct members absent
// from data keep their current value.
func (c *Codec) Decode(data []byte, v reflect.Value) error {
	if !v.CanSet() {
		return fmt.Errorf("decode target of type %s cannot be set", v.Type())
	}
	return c.decodeExact(data, v, 0)
}

func (c *Codec) encode(buf []byte, v reflect.Value, depth int) ([]byte, error) {
	t := v.Type()
	if depth > c.opts.DepthLimit {
		return nil, archiverr.NewDepthLimitError(reflection.TypeName(t), c.opts.DepthLimit)
	}

	d := c.registry.Describe(t, c.opts.Safe)
	if d.Unsupported && d.Kind != reflection.KindBinary {
		return nil, archiverr.NewUnsupportedTypeError("value", d.Name, archiverr.Encode)
	}
	switch d.Kind {
	case reflection.KindBinary:
		data, err := marshalBinary(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", d.Name, err)
		}
		return appendBlob(buf, data), nil

	case reflection.KindBool:
		// [1 byte: 0x00=false, 0x01=true]
		return appendBool(buf, v.Bool()), nil

	case reflection.KindInt:
		switch t.Kind() {
		case reflect.Int8:
			return append(buf, byte(v.Int())), nil
		case reflect.Int16:
			return binary.LittleEndian.AppendUint16(buf, uint16(v.Int())), nil
		case reflect.Int32:
			return binary.LittleEndian.AppendUint32(buf, uint32(v.Int())), nil
		default:
			// int is always written as 8 bytes
			return binary.LittleEndian.AppendUint64(buf, uint64(v.Int())), nil
		}

	case reflection.KindUint:
		switch t.Kind() {
		case reflect.Uint8:
			return append(buf, byte(v.Uint())), nil
		case reflect.Uint16:
			return binary.LittleEndian.AppendUint16(buf, uint16(v.Uint())), nil
		case reflect.Uint32:
			return binary.LittleEndian.AppendUint32(buf, uint32(v.Uint())), nil
		default:
			return binary.LittleEndian.AppendUint64(buf, v.Uint()), nil
		}

	case reflection.KindFloat:
		if t.Kind() == reflect.Float32 {
			return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v.Float()))), nil
		}
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float())), nil

	case reflection.KindComplex:
		z := v.Complex()
		if t.Kind() == reflect.Complex64 {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(real(z))))
			return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(imag(z)))), nil
		}
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(real(z)))
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(imag(z))), nil

	case reflection.KindString:
		return appendString(buf, v.String()), nil

	case reflection.KindBytes:
		// [0x00] or [0x01][4-byte length][raw bytes]
		if v.IsNil() {
			return append(buf, nilMarker), nil
		}
		return appendBlob(append(buf, presentMarker), v.Bytes()), nil

	case reflection.KindSlice:
		if v.IsNil() {
			return append(buf, nilMarker), nil
		}
		buf = append(buf, presentMarker)
		return c.encodeElements(buf, v, depth)

	case reflection.KindArray:
		if t.Elem().Kind() == reflect.Uint8 && !reflection.IsBinary(t.Elem()) {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v.Len()))
			for i := 0; i < v.Len(); i++ {
				buf = append(buf, byte(v.Index(i).Uint()))
			}
			return buf, nil
		}
		return c.encodeElements(buf, v, depth)

	case reflection.KindMap:
		if v.IsNil() {
			return append(buf, nilMarker), nil
		}
		return c.encodeMap(append(buf, presentMarker), v, depth)

	case reflection.KindPointer:
		if v.IsNil() {
			return append(buf, nilMarker), nil
		}
		return c.encode(append(buf, presentMarker), v.Elem(), depth+1)

	case reflection.KindInterface:
		// [0x00] or [0x01][type name][4-byte length][payload]
		if v.IsNil() {
			return append(buf, nilMarker), nil
		}
		elem := v.Elem()
		payload, err := c.encode(nil, elem, depth+1)
		if err != nil {
			return nil, err
		}
		buf = appendString(append(buf, presentMarker), c.registry.Register(elem.Type()))
		return appendBlob(buf, payload), nil

	case reflection.KindStruct:
		return c.encodeStruct(buf, d, v, depth)

	default:
		return nil, archiverr.NewUnsupportedTypeError("value", d.Name, archiverr.Encode)
	}
}

func (c *Codec) encodeElements(buf []byte, v reflect.Value, depth int) ([]byte, error) {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(v.Len()))
	var err error
	for i := 0; i < v.Len(); i++ {
		if buf, err = c.encode(buf, v.Index(i), depth+1); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// encodeMap writes entries sorted by their encoded key so equal maps always
// produce equal bytes.
func (c *Codec) encodeMap(buf []byte, v reflect.Value, depth int) ([]byte, error) {
	type entry struct{ key, value []byte }

	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := c.encode(nil, iter.Key(), depth+1)
		if err != nil {
			return nil, err
		}
		value, err := c.encode(nil, iter.Value(), depth+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: key, value: value})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(entries)))
	for _, e := range entries {
		buf = append(buf, e.key...)
		buf = append(buf, e.value...)
	}
	return buf, nil
}

// [4-byte member count] then per member [name][4-byte length][payload]
func (c *Codec) encodeStruct(buf []byte, d *reflection.Descriptor, v reflect.Value, depth int) ([]byte, error) {
	owner := addressable(v)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(d.Members)))
	for _, m := range d.Members {
		value, err := m.Get(owner)
		if err != nil {
			return nil, err
		}
		payload, err := c.encode(nil, value, depth+1)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", m.Name, err)
		}
		buf = appendString(buf, m.Name)
		buf = appendBlob(buf, payload)
	}
	return buf, nil
}

func (c *Codec) decodeExact(data []byte, v reflect.Value, depth int) error {
	cur := &cursor{data: data}
	if err := c.decode(cur, v, depth); err != nil {
		return err
	}
	if cur.remaining() != 0 {
		return archiverr.NewCorruptDataError(fmt.Sprintf("%d trailing bytes after %s", cur.remaining(), reflection.TypeName(v.Type())))
	}
	return nil
}

func (c *Codec) decode(cur *cursor, v reflect.Value, depth int) error {
	t := v.Type()
	if depth > c.opts.DepthLimit {
		return archiverr.NewDepthLimitError(reflection.TypeName(t), c.opts.DepthLimit)
	}

	d := c.registry.Describe(t, c.opts.Safe)
	if d.Unsupported && d.Kind != reflection.KindBinary {
		return archiverr.NewUnsupportedTypeError("value", d.Name, archiverr.Decode)
	}
	switch d.Kind {
	case reflection.KindBinary:
		data, err := cur.blob(d.Name)
		if err != nil {
			return err
		}
		u, ok := v.Addr().Interface().(encoding.BinaryUnmarshaler)
		if !ok {
			return archiverr.NewUnsupportedTypeError("value", d.Name, archiverr.Decode)
		}
		if err := u.UnmarshalBinary(data); err != nil {
			return archiverr.NewCorruptDataError(fmt.Sprintf("unmarshal %s: %v", d.Name, err))
		}
		return nil

	case reflection.KindBool:
		b, err := cur.byte("bool")
		if err != nil {
			return err
		}
		v.SetBool(b != 0x00)
		return nil

	case reflection.KindInt:
		var n int64
		switch t.Kind() {
		case reflect.Int8:
			b, err := cur.byte("int8")
			if err != nil {
				return err
			}
			n = int64(int8(b))
		case reflect.Int16:
			u, err := cur.uint16("int16")
			if err != nil {
				return err
			}
			n = int64(int16(u))
		case reflect.Int32:
			u, err := cur.uint32("int32")
			if err != nil {
				return err
			}
			n = int64(int32(u))
		default:
			u, err := cur.uint64("int64")
			if err != nil {
				return err
			}
			n = int64(u)
		}
		v.SetInt(n)
		return nil

	case reflection.KindUint:
		var n uint64
		switch t.Kind() {
		case reflect.Uint8:
			b, err := cur.byte("uint8")
			if err != nil {
				return err
			}
			n = uint64(b)
		case reflect.Uint16:
			u, err := cur.uint16("uint16")
			if err != nil {
				return err
			}
			n = uint64(u)
		case reflect.Uint32:
			u, err := cur.uint32("uint32")
			if err != nil {
				return err
			}
			n = uint64(u)
		default:
			u, err := cur.uint64("uint64")
			if err != nil {
				return err
			}
			n = u
		}
		v.SetUint(n)
		return nil

	case reflection.KindFloat:
		read := cur.float64
		if t.Kind() == reflect.Float32 {
			read = cur.float32
		}
		f, err := read("float")
		if err != nil {
			return err
		}
		v.SetFloat(f)
		return nil

	case reflection.KindComplex:
		read := cur.float64
		if t.Kind() == reflect.Complex64 {
			read = cur.float32
		}
		re, err := read("complex real part")
		if err != nil {
			return err
		}
		im, err := read("complex imaginary part")
		if err != nil {
			return err
		}
		v.SetComplex(complex(re, im))
		return nil

	case reflection.KindString:
		s, err := cur.string("string")
		if err != nil {
			return err
		}
		v.SetString(s)
		return nil

	case reflection.KindBytes:
		ok, err := cur.present("bytes")
		if err != nil {
			return err
		}
		if !ok {
			v.Set(reflect.Zero(t))
			return nil
		}
		b, err := cur.blob("bytes")
		if err != nil {
			return err
		}
		v.SetBytes(append([]byte{}, b...))
		return nil

	case reflection.KindSlice:
		ok, err := cur.present("slice")
		if err != nil {
			return err
		}
		if !ok {
			v.Set(reflect.Zero(t))
			return nil
		}
		n, err := cur.count("slice length", 1)
		if err != nil {
			return err
		}
		s := reflect.MakeSlice(t, n, n)
		for i := 0; i < n; i++ {
			if err := c.decode(cur, s.Index(i), depth+1); err != nil {
				return err
			}
		}
		v.Set(s)
		return nil

	case reflection.KindArray:
		n, err := cur.uint32("array length")
		if err != nil {
			return err
		}
		if int(n) != t.Len() {
			return archiverr.NewCorruptDataError(fmt.Sprintf("array length %d, expected %d", n, t.Len()))
		}
		if t.Elem().Kind() == reflect.Uint8 && !reflection.IsBinary(t.Elem()) {
			b, err := cur.take(int(n), "byte array")
			if err != nil {
				return err
			}
			for i := range b {
				v.Index(i).SetUint(uint64(b[i]))
			}
			return nil
		}
		for i := 0; i < int(n); i++ {
			if err := c.decode(cur, v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil

	case reflection.KindMap:
		ok, err := cur.present("map")
		if err != nil {
			return err
		}
		if !ok {
			v.Set(reflect.Zero(t))
			return nil
		}
		n, err := cur.count("map size", 2)
		if err != nil {
			return err
		}
		// a stored map replaces the target's map, it is never merged into it
		m := reflect.MakeMapWithSize(t, n)
		for i := 0; i < n; i++ {
			key := reflect.New(t.Key()).Elem()
			if err := c.decode(cur, key, depth+1); err != nil {
				return err
			}
			value := reflect.New(t.Elem()).Elem()
			if err := c.decode(cur, value, depth+1); err != nil {
				return err
			}
			m.SetMapIndex(key, value)
		}
		v.Set(m)
		return nil

	case reflection.KindPointer:
		ok, err := cur.present("pointer")
		if err != nil {
			return err
		}
		if !ok {
			v.Set(reflect.Zero(t))
			return nil
		}
		if v.IsNil() {
			v.Set(reflect.New(t.Elem()))
		}
		return c.decode(cur, v.Elem(), depth+1)

	case reflection.KindInterface:
		ok, err := cur.present("interface")
		if err != nil {
			return err
		}
		if !ok {
			v.Set(reflect.Zero(t))
			return nil
		}
		name, err := cur.string("type name")
		if err != nil {
			return err
		}
		payload, err := cur.blob(name)
		if err != nil {
			return err
		}
		dynamic, ok := c.registry.Resolve(name)
		if !ok {
			return fmt.Errorf("%w: %s", archiverr.ErrUnknownType, name)
		}
		if !dynamic.AssignableTo(t) {
			return archiverr.NewTypeMismatchError("interface value", reflection.TypeName(t), name)
		}
		elem := reflect.New(dynamic).Elem()
		if err := c.decodeExact(payload, elem, depth+1); err != nil {
			return err
		}
		v.Set(elem)
		return nil

	case reflection.KindStruct:
		return c.decodeStruct(cur, d, v, depth)

	default:
		return archiverr.NewUnsupportedTypeError("value", d.Name, archiverr.Decode)
	}
}

func (c *Codec) decodeStruct(cur *cursor, d *reflection.Descriptor, v reflect.Value, depth int) error {
	n, err := cur.count("member count", 8)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		name, err := cur.string("member name")
		if err != nil {
			return err
		}
		payload, err := cur.blob("member " + name)
		if err != nil {
			return err
		}

		// members that no longer exist on the type are skipped
		m, ok := d.Member(name)
		if !ok {
			continue
		}

		if target, ok := m.Target(v); ok {
			if err := c.decodeExact(payload, target, depth+1); err != nil {
				return fmt.Errorf("member %s: %w", name, err)
			}
			continue
		}

		value := reflect.New(m.Type).Elem()
		if err := c.decodeExact(payload, value, depth+1); err != nil {
			return fmt.Errorf("member %s: %w", name, err)
		}
		if err := m.Set(v, value); err != nil {
			return err
		}
	}
	return nil
}

func marshalBinary(v reflect.Value) ([]byte, error) {
	if m, ok := v.Interface().(encoding.BinaryMarshaler); ok {
		return m.MarshalBinary()
	}
	m, ok := addressable(v).Addr().Interface().(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("%s does not implement encoding.BinaryMarshaler", v.Type())
	}
	return m.MarshalBinary()
}

// addressable returns v itself when it can be addressed, otherwise a copy
// that can.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	cp := reflect.New(v.Type()).Elem()
	cp.Set(v)
	return cp
}
