package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an operation failure. Every service returns errors of a
// known kind so callers and the HTTP layer can react without string matching.
type Kind int

const (
	// KindInternal covers invariant violations and unexpected storage failures.
	KindInternal Kind = iota
	// KindInvalidInput covers malformed emails, usernames, roles and numeric ranges.
	KindInvalidInput
	// KindConflict covers duplicate emails, usernames, mappings and blocked deletes.
	KindConflict
	// KindNotFound covers missing entities and missing pending verifications.
	KindNotFound
	// KindExpired covers verification codes past their TTL.
	KindExpired
	// KindInvalidCode covers verification code mismatches.
	KindInvalidCode
	// KindUnauthenticated covers callers with no user record.
	KindUnauthenticated
	// KindForbidden covers callers whose role does not permit the operation.
	KindForbidden
	// KindMismatch covers login verifications whose email disagrees with the account.
	KindMismatch
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindInvalidCode:
		return "invalid_code"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindMismatch:
		return "mismatch"
	default:
		return "internal"
	}
}

// Error is a kinded error. The zero kind is internal.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, defaulting to internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status maps an error kind to an HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindInvalidInput, KindInvalidCode:
		return http.StatusBadRequest
	case KindConflict, KindMismatch:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindExpired:
		return http.StatusGone
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
