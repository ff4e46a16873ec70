package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies application errors so HTTP layers and callers can
// distinguish "already done" from "permanently rejected" from "retry later".
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindUnauthorized  Kind = "unauthorized"
	KindUpstream      Kind = "upstream"
	KindUnimplemented Kind = "unimplemented"
	KindInternal      Kind = "internal"
)

// Error is a typed application error carrying a machine-readable kind and a
// human message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to a fiber status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindConflict:
		return fiber.StatusConflict
	case KindNotFound:
		return fiber.StatusNotFound
	case KindUnauthorized:
		return fiber.StatusForbidden
	case KindUpstream:
		return fiber.StatusBadGateway
	case KindUnimplemented:
		return fiber.StatusNotImplemented
	default:
		return fiber.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error    { return New(KindValidation, message) }
func Conflict(message string) *Error      { return New(KindConflict, message) }
func NotFound(message string) *Error      { return New(KindNotFound, message) }
func Unauthorized(message string) *Error  { return New(KindUnauthorized, message) }
func Upstream(message string) *Error      { return New(KindUpstream, message) }
func Unimplemented(message string) *Error { return New(KindUnimplemented, message) }

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
