package domain

import (
	"errors"

	"github.com/soyeahso/witness/internal/witnessid"
)

// Error taxonomy shared by every layer. Callers match with errors.Is.
var (
	ErrInvalidArgument = witnessid.ErrInvalidArgument
	ErrFormat          = witnessid.ErrFormat
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrCancelled       = errors.New("cancelled")
	ErrNetwork         = errors.New("network error")
	ErrStorage         = errors.New("storage error")
)

// Kind maps err to a stable code for transports. Unknown errors are "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrFormat):
		return "format_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrNetwork):
		return "network_error"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	default:
		return "internal"
	}
}
