// lumen/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Unauthorized Kind = "unauthorized"
	Forbidden    Kind = "forbidden"
	NotFound     Kind = "not_found"
	BadRequest   Kind = "bad_request"
	Internal     Kind = "internal"
)

type Domain string

const (
	DomainChat     Domain = "chat"
	DomainDatabase Domain = "database"
	DomainAuth     Domain = "auth"
)

// Error is the typed failure every controller surfaces. Route handlers map
// it to an HTTP status; anything else gets normalized first so internals
// never reach the client.
type Error struct {
	Kind   Kind
	Domain Domain
	Msg    string
	Err    error
}

func New(kind Kind, domain Domain, msg string) *Error {
	return &Error{Kind: kind, Domain: domain, Msg: msg}
}

func Wrap(err error, kind Kind, domain Domain, msg string) *Error {
	return &Error{Kind: kind, Domain: domain, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s:%s: %s", e.Kind, e.Domain, e.Msg)
	}
	return fmt.Sprintf("%s:%s", e.Kind, e.Domain)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case BadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Normalize returns err as an *Error. Unknown errors are downgraded to a
// generic bad_request:database so the response body never leaks internal
// detail; the caller is expected to log the original.
func Normalize(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, BadRequest, DomainDatabase, "request could not be processed")
}
