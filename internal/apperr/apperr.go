// Package apperr defines the error kinds shared by the conversation engines,
// the status synchronizer and the dashboard.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is malformed user input; the caller re-prompts.
	KindValidation
	// KindNotFound is an address, building, entrance or request absent from its index.
	KindNotFound
	// KindNotServiced is a known building or entrance that is disabled.
	KindNotServiced
	// KindBlocked is a duplicate submission inside the block window.
	KindBlocked
	// KindScheduleMismatch is a check-in date outside the schedule tolerance.
	KindScheduleMismatch
	// KindGeoTimeout is a reverse-geocoding call that exceeded its deadline.
	KindGeoTimeout
	// KindForbidden is an action the caller may not perform.
	KindForbidden
	// KindConflict is a transition the current state does not allow.
	KindConflict
	// KindDelivery is an outbound chat message that failed.
	KindDelivery
	// KindPersistence is a backing-store write that failed.
	KindPersistence
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindNotServiced:
		return "not_serviced"
	case KindBlocked:
		return "blocked"
	case KindScheduleMismatch:
		return "schedule_mismatch"
	case KindGeoTimeout:
		return "geo_timeout"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindDelivery:
		return "delivery"
	case KindPersistence:
		return "persistence"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a domain error with a typed Kind.
type Error struct {
	Kind    Kind
	Message string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the kind to a dashboard response code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict, KindBlocked:
		return http.StatusConflict
	case KindNotServiced, KindScheduleMismatch:
		return http.StatusUnprocessableEntity
	case KindGeoTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the failing operation.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

func Validation(message string) *Error { return New(KindValidation, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func NotServiced(message string) *Error { return New(KindNotServiced, message) }

func Forbidden(message string) *Error { return New(KindForbidden, message) }

func Conflict(message string) *Error { return New(KindConflict, message) }

// GetKind extracts the kind from anywhere in the error chain.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
