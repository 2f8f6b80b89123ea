// AngelaMos | 2026
// errors.go

package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotEligible       = errors.New("policy not eligible")
	ErrNoOp              = errors.New("nothing to update")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrPersistence       = errors.New("persistence failure")
	ErrTimeout           = errors.New("timeout")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenRevoked      = errors.New("token revoked")
	ErrTokenInvalid      = errors.New("token invalid")
)

// Kind is the machine-readable discriminant carried by every AppError.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindPolicyNotEligible Kind = "POLICY_NOT_ELIGIBLE"
	KindNoOp              Kind = "NO_OP"
	KindForbidden         Kind = "FORBIDDEN"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindConflict          Kind = "CONFLICT"
	KindPersistence       Kind = "PERSISTENCE_ERROR"
	KindTimeout           Kind = "TIMEOUT"
	KindTokenExpired      Kind = "TOKEN_EXPIRED"
	KindTokenRevoked      Kind = "TOKEN_REVOKED"
	KindTokenInvalid      Kind = "TOKEN_INVALID"
	KindInternal          Kind = "INTERNAL_ERROR"
)

var kindSentinels = map[Kind]error{
	KindValidation:        ErrInvalidInput,
	KindNotFound:          ErrNotFound,
	KindInvalidTransition: ErrInvalidTransition,
	KindPolicyNotEligible: ErrNotEligible,
	KindNoOp:              ErrNoOp,
	KindForbidden:         ErrForbidden,
	KindUnauthorized:      ErrUnauthorized,
	KindConflict:          ErrDuplicateKey,
	KindPersistence:       ErrPersistence,
	KindTimeout:           ErrTimeout,
	KindTokenExpired:      ErrTokenExpired,
	KindTokenRevoked:      ErrTokenRevoked,
	KindTokenInvalid:      ErrTokenInvalid,
}

// HTTPStatus maps a kind onto the status code the transport layer reports.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindNoOp:
		return http.StatusBadRequest
	case KindUnauthorized, KindTokenExpired, KindTokenRevoked, KindTokenInvalid:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidTransition, KindPolicyNotEligible:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type AppError struct {
	Err        error
	Kind       Kind
	Message    string
	Fields     []FieldError
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err != kindSentinels[e.Kind] {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an AppError against the sentinel of its kind,
// so callers can test errors.Is(err, ErrNotFound) without caring about
// which layer produced it.
func (e *AppError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

func NewAppError(err error, message string, statusCode int, kind Kind) *AppError {
	return &AppError{
		Err:        err,
		Kind:       kind,
		Message:    message,
		StatusCode: statusCode,
	}
}

func newKindError(kind Kind, err error, message string) *AppError {
	if err == nil {
		err = kindSentinels[kind]
	}
	return &AppError{
		Err:        err,
		Kind:       kind,
		Message:    message,
		StatusCode: kind.HTTPStatus(),
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

func ValidationError(fields ...FieldError) *AppError {
	msg := "validation failed"
	if len(fields) == 1 {
		msg = fields[0].Field + ": " + fields[0].Message
	} else if len(fields) > 1 {
		names := make([]string, 0, len(fields))
		for _, f := range fields {
			names = append(names, f.Field)
		}
		msg = "invalid fields: " + strings.Join(names, ", ")
	}
	e := newKindError(KindValidation, nil, msg)
	e.Fields = fields
	return e
}

func NotFoundError(resource string) *AppError {
	return newKindError(KindNotFound, nil, resource+" not found")
}

func InvalidTransitionError(from, action string) *AppError {
	return newKindError(
		KindInvalidTransition,
		nil,
		fmt.Sprintf("cannot %s from status %q", action, from),
	)
}

func PolicyNotEligibleError(status string) *AppError {
	return newKindError(
		KindPolicyNotEligible,
		nil,
		fmt.Sprintf("policy status %q does not accept claims", status),
	)
}

func NoOpError(message string) *AppError {
	return newKindError(KindNoOp, nil, message)
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return newKindError(KindForbidden, nil, message)
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return newKindError(KindUnauthorized, nil, message)
}

func DuplicateError(field string) *AppError {
	e := newKindError(KindConflict, nil, field+" already exists")
	e.Fields = []FieldError{{Field: field, Message: "already exists"}}
	return e
}

func ConflictError(message string) *AppError {
	return newKindError(KindConflict, nil, message)
}

func PersistenceError(op string, err error) *AppError {
	return newKindError(KindPersistence, err, op+" failed")
}

func TimeoutError(op string, err error) *AppError {
	return newKindError(KindTimeout, err, op+" timed out")
}

func TokenExpiredError() *AppError {
	return newKindError(KindTokenExpired, nil, "token has expired")
}

func TokenRevokedError() *AppError {
	return newKindError(KindTokenRevoked, nil, "token has been revoked")
}

func TokenInvalidError() *AppError {
	return newKindError(KindTokenInvalid, nil, "token is invalid")
}

// LookupError reports a missing row as NotFoundError(resource) and
// classifies every other failure with StoreError.
func LookupError(resource, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) && !IsAppError(err) {
		return NotFoundError(resource)
	}
	return StoreError(op, err)
}

// StoreError classifies an error coming out of a repository call.
// Domain errors pass through, context deadlines become TimeoutError and
// anything else is reported as a PersistenceError.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsAppError(err) {
		return err
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateKey) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError(op, err)
	}
	return PersistenceError(op, err)
}
