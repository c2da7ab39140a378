package container

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/savex/internal/archiverr"
	"github.com/hengadev/savex/internal/reflection"
	"github.com/hengadev/savex/internal/serialization"
)

func newTestCodec(typeChecking bool) *Codec {
	values := serialization.New(reflection.NewRegistry(), serialization.Options{Safe: true})
	return NewCodec(values, typeChecking)
}

func mustTag(t *testing.T, c *Codec, v any) TaggedValue {
	t.Helper()
	tv, err := c.Tag(v)
	require.NoError(t, err)
	return tv
}

func TestContainerOrder(t *testing.T) {
	c := New()
	c.Set("b", TaggedValue{Type: "int", Data: []byte{1}})
	c.Set("a", TaggedValue{Type: "int", Data: []byte{2}})
	c.Set("c", TaggedValue{Type: "int", Data: []byte{3}})
	c.Set("b", TaggedValue{Type: "int", Data: []byte{4}})

	assert.Equal(t, []string{"b", "a", "c"}, c.Keys())
	tv, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, []byte{4}, tv.Data)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, []string{"b", "c"}, c.Keys())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, c.Size())
}

func TestContainerCloneIsDeep(t *testing.T) {
	c := New()
	c.Set("k", TaggedValue{Type: "bytes", Data: []byte{1, 2}})

	cp := c.Clone()
	tv, _ := cp.Get("k")
	tv.Data[0] = 9
	cp.Set("other", TaggedValue{})

	orig, _ := c.Get("k")
	assert.Equal(t, byte(1), orig.Data[0])
	assert.False(t, c.Has("other"))
}

func TestEncodeGolden(t *testing.T) {
	codec := newTestCodec(true)
	c := New()
	c.Set("level", mustTag(t, codec, 42))
	c.Set("name", mustTag(t, codec, "ada"))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "container", []byte(hex.EncodeToString(Encode(c))))
	g.Assert(t, "value", []byte(hex.EncodeToString(EncodeValue(mustTag(t, codec, true)))))
}

func TestDecodeRoundTrip(t *testing.T) {
	codec := newTestCodec(true)
	c := New()
	c.Set("x", mustTag(t, codec, 1.5))
	c.Set("y", mustTag(t, codec, []string{"p", "q"}))

	decoded, err := Decode(Encode(c))
	require.NoError(t, err)
	assert.Equal(t, c.Keys(), decoded.Keys())
	for k, tv := range c.All() {
		got, ok := decoded.Get(k)
		require.True(t, ok)
		assert.Equal(t, tv, got)
	}

	empty, err := Decode(Encode(New()))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestDecodeAppendedData(t *testing.T) {
	first := New()
	first.Set("a", TaggedValue{Type: "int", Data: []byte{1}})
	first.Set("b", TaggedValue{Type: "int", Data: []byte{2}})

	second := New()
	second.Set("a", TaggedValue{Type: "int", Data: []byte{3}})
	second.Set("c", TaggedValue{Type: "int", Data: []byte{4}})

	tests := []struct {
		name string
		data []byte
	}{
		{"entries only", append(Encode(first), EncodeEntries(second)...)},
		{"with header", append(Encode(first), Encode(second)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Decode(tt.data)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, c.Keys())
			tv, _ := c.Get("a")
			assert.Equal(t, []byte{3}, tv.Data)
		})
	}
}

func TestDecodeCorrupt(t *testing.T) {
	good := New()
	good.Set("key", TaggedValue{Type: "string", Data: []byte("payload")})
	data := Encode(good)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad header", []byte("JUNKJUNK")},
		{"truncated", data[:len(data)-3]},
		{"huge length", append(append([]byte{}, Header...), 0xff, 0xff, 0xff, 0xff)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, archiverr.ErrCorruptData))
		})
	}
}

func TestDecodeValue(t *testing.T) {
	tv := TaggedValue{Type: "string", Data: []byte{3, 0, 0, 0, 'a', 'b', 'c'}}

	got, err := DecodeValue(EncodeValue(tv))
	require.NoError(t, err)
	assert.Equal(t, tv, got)

	_, err = DecodeValue(append(EncodeValue(tv), 0))
	assert.True(t, errors.Is(err, archiverr.ErrCorruptData))
}
