package savex

import (
	"errors"

	"github.com/hengadev/savex/internal/archiverr"
)

// Errors returned by the engine. Match them with errors.Is; the more
// specific errors wrap their category, so errors.Is(err, ErrNotFound) holds
// for ErrKeyNotFound and ErrFileNotFound alike.
var (
	ErrNotFound          = archiverr.ErrNotFound
	ErrKeyNotFound       = archiverr.ErrKeyNotFound
	ErrFileNotFound      = archiverr.ErrFileNotFound
	ErrDirectoryNotFound = archiverr.ErrDirectoryNotFound

	ErrLocationMismatch     = archiverr.ErrLocationMismatch
	ErrUnsupportedOperation = archiverr.ErrUnsupportedOperation
	ErrAppendTransform      = archiverr.ErrAppendTransform
	ErrFormat               = archiverr.ErrFormat
	ErrInvalidConfiguration = archiverr.ErrInvalidConfiguration
	ErrMissingPassword      = archiverr.ErrMissingPassword

	ErrTransform           = archiverr.ErrTransform
	ErrDecryptionFailed    = archiverr.ErrDecryptionFailed
	ErrDecompressionFailed = archiverr.ErrDecompressionFailed

	ErrDeserialization    = archiverr.ErrDeserialization
	ErrTypeMismatch       = archiverr.ErrTypeMismatch
	ErrCorruptData        = archiverr.ErrCorruptData
	ErrUnknownType        = archiverr.ErrUnknownType
	ErrSequentialScan     = archiverr.ErrSequentialScan
	ErrUnsupportedType    = archiverr.ErrUnsupportedType
	ErrDepthLimitExceeded = archiverr.ErrDepthLimitExceeded
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsLocationMismatch(err error) bool { return errors.Is(err, ErrLocationMismatch) }

func IsUnsupportedOperation(err error) bool { return errors.Is(err, ErrUnsupportedOperation) }

func IsFormatError(err error) bool { return errors.Is(err, ErrFormat) }

// IsTransformError reports decryption and decompression failures.
func IsTransformError(err error) bool { return errors.Is(err, ErrTransform) }

func IsDeserializationError(err error) bool { return errors.Is(err, ErrDeserialization) }

func IsConfigurationError(err error) bool { return errors.Is(err, ErrInvalidConfiguration) }
