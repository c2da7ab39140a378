package monitoring

import (
	"errors"

	"github.com/hengadev/savex/internal/archiverr"
)

// ErrorClass names the taxonomy branch err belongs to, for log fields and
// metric tags.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, archiverr.ErrNotFound):
		return "not_found"
	case errors.Is(err, archiverr.ErrLocationMismatch):
		return "location_mismatch"
	case errors.Is(err, archiverr.ErrUnsupportedOperation):
		return "unsupported_operation"
	case errors.Is(err, archiverr.ErrFormat):
		return "format"
	case errors.Is(err, archiverr.ErrTransform):
		return "transform"
	case errors.Is(err, archiverr.ErrDeserialization):
		return "deserialization"
	case errors.Is(err, archiverr.ErrInvalidConfiguration):
		return "configuration"
	default:
		return "io"
	}
}
