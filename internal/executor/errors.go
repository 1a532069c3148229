package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/witness/internal/domain"
)

var errTooManyRedirects = errors.New("stopped following redirects")

// ExecError describes a request that produced no response.
type ExecError struct {
	// Kind is one of domain.ErrTimeout, domain.ErrCancelled or domain.ErrNetwork.
	Kind     error
	Method   string
	URL      string
	Elapsed  time.Duration
	Attempts int
	Err      error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%v: %s %s after %s: %v",
		e.Kind, e.Method, e.URL, e.Elapsed.Round(time.Millisecond), e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *ExecError) Unwrap() []error { return []error{e.Kind, e.Err} }

func classify(parent, callCtx context.Context, err error) error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return domain.ErrCancelled
	case errors.Is(callCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrTimeout
	case errors.Is(err, context.Canceled):
		return domain.ErrCancelled
	default:
		return domain.ErrNetwork
	}
}
