package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the failure taxonomy surfaced to callers.
type ErrorCode string

const (
	CodeValidation       ErrorCode = "ValidationError"
	CodeAuth             ErrorCode = "AuthError"
	CodeProviderRejected ErrorCode = "ProviderRejected"
	CodeTransport        ErrorCode = "TransportError"
	CodeJobFailed        ErrorCode = "JobFailed"
	CodeContentModerated ErrorCode = "ContentModerated"
	CodeJobTimeout       ErrorCode = "JobTimeout"
	CodeDownload         ErrorCode = "DownloadError"
	CodePersist          ErrorCode = "PersistError"
	CodeDecode           ErrorCode = "DecodeError"
	CodeInternal         ErrorCode = "InternalError"
)

// Category groups codes by what the user should do next.
type Category string

const (
	CategoryFixInput      Category = "fix_input"
	CategoryRetryLater    Category = "retry_later"
	CategoryServerProblem Category = "server_problem"
)

const ModerationHint = "The request was blocked by the provider's content moderation. Try gentler wording and avoid sensitive content."

// Category reports how a failure with this code should be presented.
func (c ErrorCode) Category() Category {
	switch c {
	case CodeValidation, CodeContentModerated:
		return CategoryFixInput
	case CodeTransport, CodeJobTimeout, CodeProviderRejected, CodeJobFailed, CodeDownload:
		return CategoryRetryLater
	default:
		return CategoryServerProblem
	}
}

// Hint is the guidance text shown next to the failure message.
func (c ErrorCode) Hint() string {
	switch c {
	case CodeValidation:
		return "Check the prompt, images and options, then try again."
	case CodeContentModerated:
		return ModerationHint
	case CodeTransport:
		return "The image provider could not be reached. Try again in a moment."
	case CodeJobTimeout:
		return "The provider did not finish in time. Submitting again usually works."
	case CodeProviderRejected:
		return "The provider refused the request. Adjust the input or try again later."
	case CodeJobFailed:
		return "The provider could not complete the job. Try again later."
	case CodeDownload:
		return "The image was generated but could not be fetched from the provider. Try again."
	case CodeAuth:
		return "The server is missing provider credentials. Contact the administrator."
	case CodePersist, CodeDecode:
		return "The image was generated upstream but the server could not store it. This is not caused by your prompt."
	default:
		return "Unexpected server error."
	}
}

// HTTPStatus maps a code onto the status used by the HTTP handlers.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeContentModerated:
		return http.StatusUnprocessableEntity
	case CodeProviderRejected, CodeTransport, CodeJobFailed, CodeDownload:
		return http.StatusBadGateway
	case CodeJobTimeout:
		return http.StatusGatewayTimeout
	case CodeAuth:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a taxonomy code together with the underlying cause and any
// provider diagnostics.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Raw     map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrValidation       = &Error{Code: CodeValidation}
	ErrAuth             = &Error{Code: CodeAuth}
	ErrProviderRejected = &Error{Code: CodeProviderRejected}
	ErrTransport        = &Error{Code: CodeTransport}
	ErrJobFailed        = &Error{Code: CodeJobFailed}
	ErrContentModerated = &Error{Code: CodeContentModerated}
	ErrJobTimeout       = &Error{Code: CodeJobTimeout}
	ErrDownload         = &Error{Code: CodeDownload}
	ErrPersist          = &Error{Code: CodePersist}
	ErrDecode           = &Error{Code: CodeDecode}
)

// NewError constructs a coded error.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Errorf constructs a coded error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidationErrorf is shorthand for the most common failure.
func ValidationErrorf(format string, args ...any) *Error {
	return Errorf(CodeValidation, format, args...)
}

// CodeOf extracts the taxonomy code of err. Context errors are treated as
// transport failures; anything uncoded is internal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CodeTransport
	}
	return CodeInternal
}
