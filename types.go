package savex

import (
	"fmt"
	"strings"
)

// Location selects the backend a configuration reads and writes.
type Location int8

const (
	// File stores the container as a file on disk.
	File Location = iota
	// KeyValue stores the container as one value in the platform key-value store.
	KeyValue
	// Cache keeps the container in memory until it is stored explicitly.
	Cache
	// Memory is the in-memory stream location. Containers are not addressable
	// there; use Serialize and Deserialize.
	Memory
)

var locationNames = map[Location]string{
	File:     "file",
	KeyValue: "keyvalue",
	Cache:    "cache",
	Memory:   "memory",
}

func (l Location) String() string {
	if name, ok := locationNames[l]; ok {
		return name
	}
	return fmt.Sprintf("location(%d)", int8(l))
}

func (l Location) MarshalText() ([]byte, error) {
	if _, ok := locationNames[l]; !ok {
		return nil, fmt.Errorf("%w: unknown location %d", ErrInvalidConfiguration, int8(l))
	}
	return []byte(l.String()), nil
}

func (l *Location) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "file", "":
		*l = File
	case "keyvalue", "kv", "playerprefs":
		*l = KeyValue
	case "cache":
		*l = Cache
	case "memory", "stream":
		*l = Memory
	default:
		return fmt.Errorf("%w: unknown location %q", ErrInvalidConfiguration, text)
	}
	return nil
}

// Encryption selects the encryption transform.
type Encryption int8

const (
	EncryptionNone Encryption = iota
	EncryptionAES
)

func (e Encryption) String() string {
	switch e {
	case EncryptionNone:
		return "none"
	case EncryptionAES:
		return "aes"
	}
	return fmt.Sprintf("encryption(%d)", int8(e))
}

func (e Encryption) MarshalText() ([]byte, error) {
	if e != EncryptionNone && e != EncryptionAES {
		return nil, fmt.Errorf("%w: unknown encryption %d", ErrInvalidConfiguration, int8(e))
	}
	return []byte(e.String()), nil
}

func (e *Encryption) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "none", "":
		*e = EncryptionNone
	case "aes":
		*e = EncryptionAES
	default:
		return fmt.Errorf("%w: unknown encryption %q", ErrInvalidConfiguration, text)
	}
	return nil
}

// Compression selects the compression transform.
type Compression int8

const (
	CompressionNone Compression = iota
	CompressionGzip
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	}
	return fmt.Sprintf("compression(%d)", int8(c))
}

func (c Compression) MarshalText() ([]byte, error) {
	if c != CompressionNone && c != CompressionGzip {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidConfiguration, int8(c))
	}
	return []byte(c.String()), nil
}

func (c *Compression) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "none", "":
		*c = CompressionNone
	case "gzip":
		*c = CompressionGzip
	default:
		return fmt.Errorf("%w: unknown compression %q", ErrInvalidConfiguration, text)
	}
	return nil
}

// Format is the container format. Binary is the only tagged format.
type Format int8

const (
	FormatBinary Format = iota
)

func (f Format) String() string {
	if f == FormatBinary {
		return "binary"
	}
	return fmt.Sprintf("format(%d)", int8(f))
}

func (f Format) MarshalText() ([]byte, error) {
	if f != FormatBinary {
		return nil, fmt.Errorf("%w: unknown format %d", ErrInvalidConfiguration, int8(f))
	}
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "binary", "":
		*f = FormatBinary
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidConfiguration, text)
	}
	return nil
}
