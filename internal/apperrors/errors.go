package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers and the HTTP layer can decide what
// to do with it without parsing messages.
type Kind string

const (
	KindAuthentication    Kind = "authentication"
	KindAuthorization     Kind = "authorization"
	KindState             Kind = "state"
	KindVerification      Kind = "verification"
	KindExecution         Kind = "execution"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindNetwork           Kind = "network"
	KindConfig            Kind = "config"
	KindInternal          Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from an error chain, KindInternal if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether the caller may retry the operation as-is.
// NotFound is retryable because chain finality can lag behind submission.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindNotFound:
		return true
	}
	return false
}

// IsFatal reports conditions that no retry resolves and that require an
// operator (top up the custodian, fix configuration).
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindInsufficientFunds, KindConfig:
		return true
	}
	return false
}
