package serialization

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hengadev/savex/internal/archiverr"
)

const (
	nilMarker     byte = 0x00
	presentMarker byte = 0x01
)

// [4-byte length][bytes]
func appendBlob(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// [4-byte length][UTF-8 bytes]
func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 0x01)
	}
	return append(buf, 0x00)
}

// cursor reads the encoding front to back. Every read reports a corrupt
// data error instead of panicking on short input.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) take(n int, what string) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, archiverr.NewCorruptDataError(fmt.Sprintf("insufficient data for %s", what))
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) byte(what string) (byte, error) {
	b, err := c.take(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) uint16(what string) (uint16, error) {
	b, err := c.take(2, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) uint32(what string) (uint32, error) {
	b, err := c.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) uint64(what string) (uint64, error) {
	b, err := c.take(8, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *cursor) float32(what string) (float64, error) {
	bits, err := c.uint32(what)
	if err != nil {
		return 0, err
	}
	return float64(math.Float32frombits(bits)), nil
}

func (c *cursor) float64(what string) (float64, error) {
	bits, err := c.uint64(what)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (c *cursor) blob(what string) ([]byte, error) {
	n, err := c.uint32(what + " length")
	if err != nil {
		return nil, err
	}
	return c.take(int(n), what)
}

func (c *cursor) string(what string) (string, error) {
	b, err := c.blob(what)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// count reads a 4-byte element count and rejects counts that cannot fit in
// the remaining input given the minimum encoded size of one element.
func (c *cursor) count(what string, minSize int) (int, error) {
	n, err := c.uint32(what)
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minSize) > uint64(c.remaining()) {
		return 0, archiverr.NewCorruptDataError(fmt.Sprintf("%s %d exceeds remaining data", what, n))
	}
	return int(n), nil
}

// present reads a nil marker.
func (c *cursor) present(what string) (bool, error) {
	b, err := c.byte(what + " marker")
	if err != nil {
		return false, err
	}
	switch b {
	case nilMarker:
		return false, nil
	case presentMarker:
		return true, nil
	default:
		return false, archiverr.NewCorruptDataError(fmt.Sprintf("invalid %s marker byte: 0x%02x", what, b))
	}
}
