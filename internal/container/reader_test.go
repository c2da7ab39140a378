package container

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/savex/internal/archiverr"
)

type stats struct {
	HP    int
	Speed float64
}

func newTestReader(t *testing.T, codec *Codec) *Reader {
	t.Helper()
	c := New()
	c.Set("name", mustTag(t, codec, "ada"))
	c.Set("level", mustTag(t, codec, 7))
	c.Set("stats", mustTag(t, codec, stats{HP: 10, Speed: 1.25}))

	r, err := NewReader(Encode(c), codec, "test.pak")
	require.NoError(t, err)
	return r
}

func TestReaderGoto(t *testing.T) {
	codec := newTestCodec(true)
	r := newTestReader(t, codec)

	assert.False(t, r.Goto("missing"))
	require.True(t, r.Goto("level"))

	var level int
	require.NoError(t, r.Read(&level))
	assert.Equal(t, 7, level)
}

func TestReaderReadAs(t *testing.T) {
	codec := newTestCodec(true)
	r := newTestReader(t, codec)

	s, err := ReadAs[stats](r, "stats")
	require.NoError(t, err)
	assert.Equal(t, stats{HP: 10, Speed: 1.25}, s)

	_, err = ReadAs[int](r, "missing")
	assert.True(t, errors.Is(err, archiverr.ErrKeyNotFound))
	assert.True(t, errors.Is(err, archiverr.ErrNotFound))

	_, err = ReadAs[string](r, "level")
	assert.True(t, errors.Is(err, archiverr.ErrTypeMismatch))
	assert.True(t, errors.Is(err, archiverr.ErrDeserialization))

	v, err := ReadAs[any](r, "name")
	require.NoError(t, err)
	assert.Equal(t, "ada", v)
}

func TestReaderReadOr(t *testing.T) {
	codec := newTestCodec(true)
	r := newTestReader(t, codec)

	got, err := ReadOr(r, "missing", 99)
	require.NoError(t, err)
	assert.Equal(t, 99, got)

	got, err = ReadOr(r, "level", 99)
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	_, err = ReadOr(r, "name", 99)
	assert.True(t, errors.Is(err, archiverr.ErrTypeMismatch))
}

func TestReaderProperties(t *testing.T) {
	codec := newTestCodec(true)
	r := newTestReader(t, codec)

	var keys []string
	for key := range r.Properties() {
		keys = append(keys, key)
		if key == "level" {
			var level int
			require.NoError(t, r.Read(&level))
			continue
		}
		r.Skip()
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []string{"name", "level", "stats"}, keys)

	// restartable per call
	var again []string
	for key := range r.Properties() {
		again = append(again, key)
		r.Skip()
	}
	assert.Equal(t, keys, again)
}

func TestReaderPropertiesRequiresReadOrSkip(t *testing.T) {
	codec := newTestCodec(true)
	r := newTestReader(t, codec)

	var seen []string
	for key := range r.Properties() {
		seen = append(seen, key)
	}

	assert.Equal(t, []string{"name"}, seen)
	assert.True(t, errors.Is(r.Err(), archiverr.ErrSequentialScan))
}

func TestReaderDoesNotMutate(t *testing.T) {
	codec := newTestCodec(true)
	c := New()
	c.Set("k", mustTag(t, codec, "v"))
	data := Encode(c)
	snapshot := append([]byte{}, data...)

	r, err := NewReader(data, codec, "x")
	require.NoError(t, err)
	for key := range r.Properties() {
		var s string
		require.NoError(t, r.ReadInto(key, &s))
	}
	for range r.Entries() {
	}

	assert.Equal(t, snapshot, data)
}

func TestReaderWithoutTypeChecking(t *testing.T) {
	codec := newTestCodec(false)
	c := New()
	c.Set("n", TaggedValue{Type: "custom.Name", Data: mustTag(t, codec, int64(5)).Data})

	r, err := NewReader(Encode(c), codec, "x")
	require.NoError(t, err)

	n, err := ReadAs[int64](r, "n")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
