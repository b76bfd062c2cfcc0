package errors

import (
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an AppError independently of its HTTP code.
type Kind string

const (
	KindInternal          Kind = "internal"
	KindBadRequest        Kind = "bad_request"
	KindUnauthorized      Kind = "unauthorized"
	KindNotFound          Kind = "not_found"
	KindNotReady          Kind = "not_ready"
	KindConflict          Kind = "conflict"
	KindStorage           Kind = "storage"
	KindTransientUpstream Kind = "transient_upstream"
	KindTerminalUpstream  Kind = "terminal_upstream"
	KindMalformedResponse Kind = "malformed_response"
	KindConfiguration     Kind = "configuration"
)

type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code int, op string, err error, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func InvalidInput(op string, err error, message string) *AppError {
	return newError(KindBadRequest, http.StatusBadRequest, op, err, message)
}

func NotFound(op string, err error, message string) *AppError {
	return newError(KindNotFound, http.StatusNotFound, op, err, message)
}

func Internal(op string, err error, message string) *AppError {
	return newError(KindInternal, http.StatusInternalServerError, op, err, message)
}

// Unauthorized is returned when the caller has no valid identity.
func Unauthorized(op string, err error, message string) *AppError {
	return newError(KindUnauthorized, http.StatusUnauthorized, op, err, message)
}

// Forbidden is an Unauthorized error for a caller that does not own the resource.
func Forbidden(op string, err error, message string) *AppError {
	return newError(KindUnauthorized, http.StatusForbidden, op, err, message)
}

func NotReady(op string, err error, message string) *AppError {
	return newError(KindNotReady, http.StatusConflict, op, err, message)
}

// Conflict is returned when a record is not in the state an update expects.
func Conflict(op string, err error, message string) *AppError {
	return newError(KindConflict, http.StatusConflict, op, err, message)
}

func Storage(op string, err error, message string) *AppError {
	return newError(KindStorage, http.StatusInternalServerError, op, err, message)
}

// Transient marks a remote failure worth retrying (rate limit, resource exhaustion).
func Transient(op string, err error, message string) *AppError {
	return newError(KindTransientUpstream, http.StatusBadGateway, op, err, message)
}

// Terminal marks a remote failure that must not be retried.
func Terminal(op string, err error, message string) *AppError {
	return newError(KindTerminalUpstream, http.StatusBadGateway, op, err, message)
}

func Malformed(op string, err error, message string) *AppError {
	return newError(KindMalformedResponse, http.StatusBadGateway, op, err, message)
}

func Configuration(op string, err error, message string) *AppError {
	return newError(KindConfiguration, http.StatusServiceUnavailable, op, err, message)
}

// KindOf returns the kind of the outermost AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *AppError
	if pkgerrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether any AppError in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var appErr *AppError
		if !pkgerrors.As(err, &appErr) {
			return false
		}
		if appErr.Kind == kind {
			return true
		}
		err = appErr.Err
	}
	return false
}

func IsNotFound(err error) bool {
	return Is(err, KindNotFound)
}

func IsTransient(err error) bool {
	return KindOf(err) == KindTransientUpstream
}

// Upstream wraps a surfaced remote failure for the caller. Errors that
// already carry a caller-facing kind pass through unchanged.
func Upstream(op string, err error) *AppError {
	var appErr *AppError
	if pkgerrors.As(err, &appErr) {
		switch appErr.Kind {
		case KindMalformedResponse, KindConfiguration, KindNotReady, KindNotFound, KindUnauthorized:
			return appErr
		}
	}
	return Terminal(op, err, "Upstream service failed")
}
