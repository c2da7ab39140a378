package container

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hengadev/savex/internal/archiverr"
)

// Version of the container framing written by this package.
const Version byte = 1

// Header starts every encoded container.
var Header = []byte{'S', 'V', 'X', Version}

// Encode frames c as
//
//	[header] then per entry [4-byte key length][key][4-byte tag length][tag][4-byte payload length][payload]
//
// with little-endian lengths. An empty container is the header alone.
func Encode(c *Container) []byte {
	size := len(Header)
	for k, tv := range c.All() {
		size += 12 + len(k) + len(tv.Type) + len(tv.Data)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, Header...)
	for k, tv := range c.All() {
		buf = appendEntry(buf, k, tv)
	}
	return buf
}

// EncodeEntries frames entries without the header, as appended to an
// existing container.
func EncodeEntries(c *Container) []byte {
	var buf []byte
	for k, tv := range c.All() {
		buf = appendEntry(buf, k, tv)
	}
	return buf
}

// Decode parses an encoded container. A key repeated later in the stream
// (appended data) replaces the earlier value and keeps the earlier
// position. A header repeated at an entry boundary is skipped.
func Decode(data []byte) (*Container, error) {
	if !HasHeader(data) {
		return nil, archiverr.NewCorruptDataError("missing container header")
	}

	c := New()
	pos := len(Header)
	for pos < len(data) {
		if bytes.HasPrefix(data[pos:], Header) {
			pos += len(Header)
			continue
		}

		key, next, err := field(data, pos, "key")
		if err != nil {
			return nil, err
		}
		tag, next, err := field(data, next, "type tag")
		if err != nil {
			return nil, err
		}
		payload, next, err := field(data, next, "payload")
		if err != nil {
			return nil, err
		}
		c.Set(string(key), TaggedValue{Type: string(tag), Data: payload})
		pos = next
	}
	return c, nil
}

// HasHeader reports whether data starts with a container header of a
// supported version.
func HasHeader(data []byte) bool {
	return bytes.HasPrefix(data, Header)
}

// EncodeValue frames a single tagged value as
// [4-byte tag length][tag][4-byte payload length][payload].
func EncodeValue(tv TaggedValue) []byte {
	buf := make([]byte, 0, 8+len(tv.Type)+len(tv.Data))
	buf = appendField(buf, []byte(tv.Type))
	return appendField(buf, tv.Data)
}

// DecodeValue parses a frame written by EncodeValue.
func DecodeValue(data []byte) (TaggedValue, error) {
	tag, next, err := field(data, 0, "type tag")
	if err != nil {
		return TaggedValue{}, err
	}
	payload, next, err := field(data, next, "payload")
	if err != nil {
		return TaggedValue{}, err
	}
	if next != len(data) {
		return TaggedValue{}, archiverr.NewCorruptDataError(fmt.Sprintf("%d trailing bytes after value", len(data)-next))
	}
	return TaggedValue{Type: string(tag), Data: payload}, nil
}

func appendEntry(buf []byte, key string, tv TaggedValue) []byte {
	buf = appendField(buf, []byte(key))
	buf = appendField(buf, []byte(tv.Type))
	return appendField(buf, tv.Data)
}

func appendField(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func field(data []byte, pos int, what string) ([]byte, int, error) {
	if len(data)-pos < 4 {
		return nil, 0, archiverr.NewCorruptDataError(fmt.Sprintf("insufficient data for %s length", what))
	}
	n := binary.LittleEndian.Uint32(data[pos:])
	pos += 4
	if uint64(n) > uint64(len(data)-pos) {
		return nil, 0, archiverr.NewCorruptDataError(fmt.Sprintf("insufficient data for %s", what))
	}
	end := pos + int(n)
	return data[pos:end:end], end, nil
}
