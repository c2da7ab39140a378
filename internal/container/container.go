// Package container holds the ordered key to tagged value store behind one
// archive, its binary framing, and the Reader and Writer used by the
// persistent locations.
package container

import "iter"

// TaggedValue is a payload together with the name of the type that
// produced it.
type TaggedValue struct {
	Type string
	Data []byte
}

func (tv TaggedValue) clone() TaggedValue {
	return TaggedValue{Type: tv.Type, Data: append([]byte(nil), tv.Data...)}
}

// Container maps keys to tagged values, keeping insertion order. It is not
// safe for concurrent use.
type Container struct {
	keys   []string
	values map[string]TaggedValue
}

func New() *Container {
	return &Container{values: make(map[string]TaggedValue)}
}

func (c *Container) Len() int { return len(c.keys) }

func (c *Container) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

func (c *Container) Get(key string) (TaggedValue, bool) {
	tv, ok := c.values[key]
	return tv, ok
}

// Set stores tv under key. An existing key keeps its position.
func (c *Container) Set(key string, tv TaggedValue) {
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = tv
}

// Delete removes key and reports whether it was present.
func (c *Container) Delete(key string) bool {
	if _, ok := c.values[key]; !ok {
		return false
	}
	delete(c.values, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in storage order.
func (c *Container) Keys() []string {
	return append([]string{}, c.keys...)
}

// All iterates entries in storage order.
func (c *Container) All() iter.Seq2[string, TaggedValue] {
	return func(yield func(string, TaggedValue) bool) {
		for _, k := range c.keys {
			if !yield(k, c.values[k]) {
				return
			}
		}
	}
}

// Size is the number of payload bytes held.
func (c *Container) Size() int {
	n := 0
	for _, tv := range c.values {
		n += len(tv.Data)
	}
	return n
}

// Merge copies every entry of other into c, overwriting existing keys.
func (c *Container) Merge(other *Container) {
	for k, tv := range other.All() {
		c.Set(k, tv.clone())
	}
}

// Clone returns a deep copy.
func (c *Container) Clone() *Container {
	cp := &Container{
		keys:   append([]string(nil), c.keys...),
		values: make(map[string]TaggedValue, len(c.values)),
	}
	for k, tv := range c.values {
		cp.values[k] = tv.clone()
	}
	return cp
}
