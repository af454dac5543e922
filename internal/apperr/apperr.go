// Package apperr classifies request failures so the HTTP boundary can map
// them to a status code. Every failure is terminal for its request.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the failure category
type Kind int

const (
	// KindInternal is anything not otherwise classified
	KindInternal Kind = iota
	// KindValidation means the caller sent incomplete or invalid input
	KindValidation
	// KindConfiguration means the server is missing a template or credential
	KindConfiguration
	// KindUpstream means a third-party service rejected or failed the call
	KindUpstream
	// KindNotFound means a managed resource does not exist
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindUpstream:
		return "upstream"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified failure
type Error struct {
	Kind    Kind
	Message string
	// Details is the upstream diagnostic payload, passed through to the client
	Details any
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

// Validation returns a client error
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Validationf wraps err as a client error
func Validationf(err error, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...), Err: err}
}

// Configuration returns a server-side configuration error
func Configuration(msg string) *Error {
	return &Error{Kind: KindConfiguration, Message: msg}
}

// Upstream returns a gateway error carrying the upstream's payload
func Upstream(msg string, details any) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Details: details}
}

// NotFound returns a missing-resource error
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// KindOf returns the kind of err, or KindInternal if unclassified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to a response status
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message and details for err
func Message(err error) (string, any) {
	var e *Error
	if errors.As(err, &e) {
		return e.Error(), e.Details
	}
	return err.Error(), nil
}
