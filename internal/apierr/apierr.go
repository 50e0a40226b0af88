// Package apierr defines the failure kinds every fotos operation surfaces
// and the single fallback that turns any other error into an internal one.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// InternalMessage is the only text a caller ever sees for an internal failure.
const InternalMessage = "Something went wrong..."

type Kind int

const (
	Internal Kind = iota
	NotFound
	Conflict
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: Conflict, Message: fmt.Sprintf(format, args...)}
}

// From classifies err. A typed *Error anywhere in the chain is returned
// unchanged; everything else becomes Internal carrying the redacted message
// and the original error as Cause.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return &Error{Kind: Internal, Message: InternalMessage, Cause: err}
}

// Is reports whether err classifies as kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return From(err).Kind == kind
}
