// Package apperr is the error taxonomy shown to users. Every failure that reaches an HTTP
// handler is converted into an *Error carrying a status, a stable code and a message that is
// safe to display; the wrapped cause is only logged.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeUnauthenticated     = "unauthenticated"
	CodeAuthFailure         = "auth_failure"
	CodeSignupDisabled      = "signup_disabled"
	CodeProfileUnavailable  = "profile_unavailable"
	CodeSubscriptionExpired = "subscription_expired"
	CodeExtractionFailure   = "extraction_failure"
	CodeTextTooShort        = "text_too_short"
	CodeGenerationQuota     = "generation_quota_exceeded"
	CodeGenerationTransport = "generation_transport_error"
	CodeGenerationFailed    = "generation_failed"
	CodeNoteStoreError      = "note_store_error"
	CodeNotFound            = "not_found"
	CodeBadRequest          = "bad_request"
	CodeConflict            = "conflict"
	CodeTooLarge            = "payload_too_large"
	CodeInvalidState        = "invalid_state"
	CodeInternal            = "internal_error"
)

type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code, message string, err error) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: err}
}

// From returns err as an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

func Unauthenticated(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthenticated, "Please log in to continue.", err)
}

func AuthFailure(err error) *Error {
	return New(http.StatusUnauthorized, CodeAuthFailure, "Login failed: check your e-mail and password.", err)
}

func SignupDisabled() *Error {
	return New(http.StatusForbidden, CodeSignupDisabled, "Creating new accounts is temporarily disabled.", nil)
}

func ProfileUnavailable(err error) *Error {
	return New(http.StatusForbidden, CodeProfileUnavailable, "Your profile could not be loaded. Please log out and try again.", err)
}

func SubscriptionExpired() *Error {
	return New(http.StatusPaymentRequired, CodeSubscriptionExpired, "Your subscription has expired. Please contact us to renew your access.", nil)
}

func Extraction(message string, err error) *Error {
	return New(http.StatusUnprocessableEntity, CodeExtractionFailure, message, err)
}

func TextTooShort() *Error {
	return New(http.StatusUnprocessableEntity, CodeTextTooShort, "The extracted text is too short for a meaningful analysis.", nil)
}

func GenerationQuota(err error) *Error {
	return New(http.StatusTooManyRequests, CodeGenerationQuota, "The AI service quota is exhausted. Please wait a moment and try again.", err)
}

func GenerationTransport(err error) *Error {
	return New(http.StatusBadGateway, CodeGenerationTransport, "The AI service could not be reached. Please try again.", err)
}

func GenerationFailed(err error) *Error {
	return New(http.StatusBadGateway, CodeGenerationFailed, "The AI service could not complete the request. Please try again.", err)
}

func NoteStore(err error) *Error {
	return New(http.StatusInternalServerError, CodeNoteStoreError, "Your notes could not be saved or loaded. Please try again.", err)
}

func NotFound(what string) *Error {
	return New(http.StatusNotFound, CodeNotFound, what+" not found", nil)
}

func BadRequest(message string, err error) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message, err)
}

func Conflict(message string, err error) *Error {
	return New(http.StatusConflict, CodeConflict, message, err)
}

func TooLarge(limit int64) *Error {
	return New(http.StatusRequestEntityTooLarge, CodeTooLarge, fmt.Sprintf("The upload exceeds the maximum size of %d MB.", limit>>20), nil)
}

func InvalidState(message string) *Error {
	return New(http.StatusConflict, CodeInvalidState, message, nil)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, "Something went wrong. Please try again.", err)
}
