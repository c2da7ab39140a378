package archiverr

import (
	"errors"
	"fmt"
)

var (
	// Lookup errors
	ErrNotFound          = errors.New("not found")
	ErrKeyNotFound       = fmt.Errorf("key %w", ErrNotFound)
	ErrFileNotFound      = fmt.Errorf("file %w", ErrNotFound)
	ErrDirectoryNotFound = fmt.Errorf("directory %w", ErrNotFound)

	// Precondition errors, raised before any I/O
	ErrLocationMismatch     = errors.New("location mismatch")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrAppendTransform      = fmt.Errorf("%w: append with encryption or compression", ErrUnsupportedOperation)
	ErrFormat               = errors.New("unsupported format")
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// Transform errors
	ErrTransform           = errors.New("transform failed")
	ErrDecryptionFailed    = fmt.Errorf("%w: decryption failed", ErrTransform)
	ErrDecompressionFailed = fmt.Errorf("%w: decompression failed", ErrTransform)
	ErrMissingPassword     = fmt.Errorf("%w: encryption requires a password", ErrInvalidConfiguration)

	// Codec errors
	ErrDeserialization    = errors.New("deserialization failed")
	ErrTypeMismatch       = fmt.Errorf("%w: type mismatch", ErrDeserialization)
	ErrCorruptData        = fmt.Errorf("%w: corrupt data", ErrDeserialization)
	ErrUnknownType        = fmt.Errorf("%w: unknown type name", ErrDeserialization)
	ErrSequentialScan     = errors.New("key yielded without read or skip")
	ErrUnsupportedType    = errors.New("unsupported type")
	ErrDepthLimitExceeded = errors.New("serialization depth limit exceeded")
	ErrClosed             = errors.New("writer is closed")
)

func NewKeyNotFoundError(key, path string) error {
	return fmt.Errorf("%w: '%s' in %s", ErrKeyNotFound, key, path)
}

func NewFileNotFoundError(path string, action Action) error {
	return fmt.Errorf("%w: %s for %s operation", ErrFileNotFound, path, action)
}

func NewDirectoryNotFoundError(path string, action Action) error {
	return fmt.Errorf("%w: %s for %s operation", ErrDirectoryNotFound, path, action)
}

func NewLocationMismatchError(from, to string, action Action) error {
	return fmt.Errorf("%w: cannot %s from %s to %s", ErrLocationMismatch, action, from, to)
}

func NewUnsupportedOperationError(operation, location string) error {
	return fmt.Errorf("%w: %s is not supported for location %s", ErrUnsupportedOperation, operation, location)
}

func NewFormatError(path, details string) error {
	if details != "" {
		return fmt.Errorf("%w: %s: %s", ErrFormat, path, details)
	}
	return fmt.Errorf("%w: %s", ErrFormat, path)
}

func NewTypeMismatchError(key, expected, actual string) error {
	return fmt.Errorf("%w: '%s' holds %s, requested %s", ErrTypeMismatch, key, actual, expected)
}

func NewUnsupportedTypeError(memberName, typeName string, action Action) error {
	return fmt.Errorf("%w: member '%s' has unsupported type %s for %s operation",
		ErrUnsupportedType, memberName, typeName, action)
}

func NewCorruptDataError(details string) error {
	return fmt.Errorf("%w: %s", ErrCorruptData, details)
}

func NewDepthLimitError(typeName string, limit int) error {
	return fmt.Errorf("%w: %s nested deeper than %d", ErrDepthLimitExceeded, typeName, limit)
}
