package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/openai/openai-go"
)

var (
	// ErrSuperseded is returned to a request whose call received a newer
	// utterance before the backend answered. Its reply is discarded.
	ErrSuperseded = errors.New("llm: superseded by a newer utterance")

	// ErrPollTimeout means an asynchronous run did not finish within the
	// configured maximum wait.
	ErrPollTimeout = errors.New("llm: run did not finish in time")

	// ErrEmptyReply means the backend answered without any usable text.
	ErrEmptyReply = errors.New("llm: empty reply")
)

// TransientError is a backend failure that may succeed on retry: rate
// limits, timeouts, overloaded servers, runs that did not finish in time.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("llm: %s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError is a backend failure that will not go away by retrying:
// rejected requests, failed or cancelled runs, malformed or empty output.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("llm: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a *TransientError.
func IsTransient(err error) bool {
	var e *TransientError
	return errors.As(err, &e)
}

// IsFatal reports whether err carries a *FatalError.
func IsFatal(err error) bool {
	var e *FatalError
	return errors.As(err, &e)
}

// Classify wraps err as a *TransientError or *FatalError. Errors that are
// already classified, nil, ErrSuperseded and plain cancellations pass
// through unchanged.
func Classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsTransient(err), IsFatal(err), errors.Is(err, ErrSuperseded):
		return err
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrPollTimeout):
		return &TransientError{Op: op, Err: err}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if retryableStatus(apiErr.StatusCode) {
			return &TransientError{Op: op, Err: err}
		}
		return &FatalError{Op: op, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientError{Op: op, Err: err}
	}
	return &FatalError{Op: op, Err: err}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}
