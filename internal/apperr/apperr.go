// Package apperr is the error vocabulary shared by the session, gateway,
// cart and order layers. Callers branch on the kind sentinels with
// errors.Is, or on gRPC codes with status.Code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrUnauthenticated: no usable session when one is required.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrAuthExpired: the backend rejected the access credential.
	ErrAuthExpired     = errors.New("auth expired")
	ErrValidation      = errors.New("validation failed")
	ErrTransport       = errors.New("transport failure")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
)

// Error carries the kind sentinel plus whatever the backend told us.
type Error struct {
	Kind    error
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (http %d)", msg, e.Status)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// GRPCStatus lets status.Code and status.FromError read our errors.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(codeOf(e.Kind), e.Error())
}

func codeOf(kind error) codes.Code {
	switch kind {
	case ErrUnauthenticated, ErrAuthExpired:
		return codes.Unauthenticated
	case ErrValidation:
		return codes.InvalidArgument
	case ErrTransport:
		return codes.Unavailable
	case ErrConflict:
		return codes.FailedPrecondition
	case ErrNotFound:
		return codes.NotFound
	case ErrForbidden:
		return codes.PermissionDenied
	default:
		return codes.Unknown
	}
}

func New(kind error, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Wrap(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Unauthenticated(op string) *Error {
	return New(ErrUnauthenticated, op, "no active session")
}

func Validation(op, format string, args ...any) *Error {
	return New(ErrValidation, op, fmt.Sprintf(format, args...))
}

// SessionExpired is what callers see once refresh could not save the
// request: it matches both ErrUnauthenticated and ErrAuthExpired.
func SessionExpired(op string, cause error) *Error {
	if cause == nil {
		cause = ErrAuthExpired
	} else if !errors.Is(cause, ErrAuthExpired) {
		cause = fmt.Errorf("%w: %w", ErrAuthExpired, cause)
	}
	return &Error{Kind: ErrUnauthenticated, Op: op, Message: "session expired, log in again", Err: cause}
}

// FromStatus classifies a non-2xx response that is not an expired
// credential signal.
func FromStatus(op string, statusCode int, message string) *Error {
	var kind error
	switch {
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		kind = ErrValidation
	case statusCode == http.StatusUnauthorized:
		kind = ErrUnauthenticated
	case statusCode == http.StatusForbidden:
		kind = ErrForbidden
	case statusCode == http.StatusNotFound:
		kind = ErrNotFound
	case statusCode == http.StatusConflict:
		kind = ErrConflict
	default:
		kind = ErrTransport
	}
	return &Error{Kind: kind, Op: op, Status: statusCode, Message: message}
}
