package status

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindAuthorization   Kind = "authorization"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindState           Kind = "state"
	KindExpired         Kind = "expired"
	KindExternalService Kind = "external_service"
	KindInternal        Kind = "internal"
)

// Codes surfaced to API clients.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeNotFound             = "not_found"
	CodeExpired              = "expired"
	CodeAlreadyVerified      = "already_verified"
	CodeCapacityExceeded     = "capacity_exceeded"
	CodeTicketLimitExceeded  = "ticket_limit_exceeded"
	CodeRegistrationClosed   = "registration_closed"
	CodeEventNotOpen         = "event_not_open"
	CodeDuplicateCertificate = "duplicate_certificate"
	CodeNotAttended          = "attendance_not_verified"
	CodeTemplateMissing      = "certificate_template_missing"
	CodeInvalidCallbackToken = "invalid_callback_token"
	CodeAmountMismatch       = "amount_mismatch"
	CodeGatewayUnavailable   = "gateway_unavailable"
	CodeGatewayTimeout       = "gateway_timeout"
	CodeForbidden            = "forbidden"
	CodeUnauthorized         = "unauthorized"
	CodeInvalidState         = "invalid_state"
	CodeBusy                 = "busy"
	CodeRenderFailed         = "render_failed"
	CodeRefundExceeded       = "refund_exceeds_paid_amount"
	CodeAlreadyRegistered    = "already_registered"
	CodeInternal             = "internal_error"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindState:
		return http.StatusConflict
	case KindExpired:
		return http.StatusGone
	case KindExternalService:
		if e.Code == CodeGatewayTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Err: err}
}

func Validation(code, msg string) *Error { return newError(KindValidation, code, msg, nil) }

func ValidationWrap(msg string, err error) *Error {
	return newError(KindValidation, CodeInvalidRequest, msg, err)
}

func Unauthenticated(msg string) *Error {
	return newError(KindUnauthenticated, CodeUnauthorized, msg, nil)
}

func Forbidden(code, msg string) *Error { return newError(KindAuthorization, code, msg, nil) }

func NotFound(msg string) *Error { return newError(KindNotFound, CodeNotFound, msg, nil) }

func Conflict(code, msg string) *Error { return newError(KindConflict, code, msg, nil) }

func State(code, msg string) *Error { return newError(KindState, code, msg, nil) }

func Expired(msg string) *Error { return newError(KindExpired, CodeExpired, msg, nil) }

func External(code, msg string, err error) *Error {
	return newError(KindExternalService, code, msg, err)
}

func Internal(msg string, err error) *Error {
	return newError(KindInternal, CodeInternal, msg, err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// CodeOf returns the client code of err.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrExpired          = &Error{Kind: KindExpired}
	ErrAlreadyVerified  = &Error{Kind: KindConflict, Code: CodeAlreadyVerified}
	ErrCapacityExceeded = &Error{Kind: KindConflict, Code: CodeCapacityExceeded}
	ErrDuplicateCert    = &Error{Kind: KindConflict, Code: CodeDuplicateCertificate}
	ErrInvalidCallback  = &Error{Kind: KindAuthorization, Code: CodeInvalidCallbackToken}
)
