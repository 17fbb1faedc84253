package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error so the HTTP layer can map it to a
// status code without inspecting message strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindAuth
	KindForbidden
	KindConflict
	KindTransient
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Authf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuth, Msg: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func Transientf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindTransient, Msg: fmt.Sprintf(format, args...)}
}

// KindOf walks the wrap chain and reports the error's kind. Context deadline
// and cancellation errors count as transient so callers see a retryable 503
// instead of a generic 500 when a bounded database call times out.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	return KindUnknown
}

// HTTPStatus maps an error kind to the status code the API surfaces.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
