package container

import (
	"fmt"
	"iter"

	"github.com/hengadev/savex/internal/archiverr"
)

// Reader gives random and sequential access to a decoded container. Reading
// never mutates the underlying container.
type Reader struct {
	container *Container
	codec     *Codec
	path      string

	current  string
	selected bool
	pending  bool
	err      error
}

// NewReader parses data, which must be a complete encoded container after
// transforms were undone. path is only used in error messages.
func NewReader(data []byte, codec *Codec, path string) (*Reader, error) {
	c, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Reader{container: c, codec: codec, path: path}, nil
}

// ReaderOf reads an already decoded container. The container is copied.
func ReaderOf(c *Container, codec *Codec, path string) *Reader {
	return &Reader{container: c.Clone(), codec: codec, path: path}
}

// Goto selects key for the next Read. It reports false when the key is
// absent.
func (r *Reader) Goto(key string) bool {
	if !r.container.Has(key) {
		return false
	}
	r.current, r.selected, r.pending = key, true, false
	return true
}

// Properties iterates keys in storage order. Each call starts from the
// first key. Every yielded key must be consumed with Read, ReadTagged or
// Skip before the loop advances, otherwise iteration stops and Err reports
// ErrSequentialScan.
func (r *Reader) Properties() iter.Seq[string] {
	return func(yield func(string) bool) {
		r.err = nil
		for _, key := range r.container.Keys() {
			r.current, r.selected, r.pending = key, true, true
			if !yield(key) {
				r.pending = false
				return
			}
			if r.pending {
				r.pending = false
				r.err = fmt.Errorf("%w: '%s' in %s", archiverr.ErrSequentialScan, key, r.path)
				return
			}
		}
	}
}

// Entries iterates raw entries without decoding them.
func (r *Reader) Entries() iter.Seq2[string, TaggedValue] {
	return r.container.All()
}

// Err returns the error that stopped the last Properties loop.
func (r *Reader) Err() error { return r.err }

// Skip consumes the selected key without decoding it.
func (r *Reader) Skip() { r.pending = false }

// ReadTagged returns the raw value of the selected key.
func (r *Reader) ReadTagged() (TaggedValue, error) {
	if !r.selected {
		return TaggedValue{}, fmt.Errorf("%w: no key selected in %s", archiverr.ErrKeyNotFound, r.path)
	}
	r.pending = false
	tv, _ := r.container.Get(r.current)
	return tv, nil
}

// Read decodes the selected key into the value target points to.
func (r *Reader) Read(target any) error {
	tv, err := r.ReadTagged()
	if err != nil {
		return err
	}
	return r.codec.DecodeTarget(r.current, tv, target)
}

// ReadInto decodes key into the value target points to.
func (r *Reader) ReadInto(key string, target any) error {
	if !r.Goto(key) {
		return archiverr.NewKeyNotFoundError(key, r.path)
	}
	return r.Read(target)
}

// Tagged returns the raw value stored under key.
func (r *Reader) Tagged(key string) (TaggedValue, bool) {
	return r.container.Get(key)
}

func (r *Reader) Has(key string) bool { return r.container.Has(key) }

func (r *Reader) Keys() []string { return r.container.Keys() }

// Container returns a copy of the decoded container.
func (r *Reader) Container() *Container { return r.container.Clone() }

// ReadAs decodes key as T. A missing key is a not found error.
func ReadAs[T any](r *Reader, key string) (T, error) {
	tv, ok := r.container.Get(key)
	if !ok {
		var zero T
		return zero, archiverr.NewKeyNotFoundError(key, r.path)
	}
	return DecodeAs[T](r.codec, key, tv)
}

// ReadOr decodes key as T, returning def when the key is absent. Decoding
// failures are still reported.
func ReadOr[T any](r *Reader, key string, def T) (T, error) {
	tv, ok := r.container.Get(key)
	if !ok {
		return def, nil
	}
	return DecodeAs[T](r.codec, key, tv)
}
