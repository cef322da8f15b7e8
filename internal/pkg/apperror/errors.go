package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError     ErrorCode = "DATABASE_ERROR"
	ErrCodeInvalidToken      ErrorCode = "INVALID_TOKEN"
	ErrCodePaymentRequired   ErrorCode = "PAYMENT_REQUIRED"
	ErrCodeDependencyFailure ErrorCode = "DEPENDENCY_FAILURE"
)

// AppError - типизированная ошибка приложения.
// Fields несёт детализацию по полям для ошибок валидации и причину для ошибок токена.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Fields     map[string]string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation собирает ошибку валидации с пояснениями по каждому полю.
func Validation(fields map[string]string) *AppError {
	return &AppError{
		Code:       ErrCodeValidation,
		Message:    "the given data was invalid",
		HTTPStatus: codeToHTTPStatus(ErrCodeValidation),
		Fields:     fields,
	}
}

// FieldError - ошибка валидации одного поля.
func FieldError(field, message string) *AppError {
	return Validation(map[string]string{field: message})
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeInvalidToken:
		return http.StatusGone
	case ErrCodePaymentRequired:
		return http.StatusPaymentRequired
	case ErrCodeDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return hasCode(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

func IsInvalidToken(err error) bool {
	return hasCode(err, ErrCodeInvalidToken)
}

func IsPaymentRequired(err error) bool {
	return hasCode(err, ErrCodePaymentRequired)
}

func IsDependencyFailure(err error) bool {
	return hasCode(err, ErrCodeDependencyFailure)
}

func tokenError(code ErrorCode, reason, message string) *AppError {
	e := New(code, message)
	e.Fields = map[string]string{"token": reason}
	return e
}

var (
	ErrAttendanceNotFound = New(ErrCodeNotFound, "institution attendance not found")
	ErrReferenceNotFound  = New(ErrCodeNotFound, "reference not found")
	ErrDisputeNotFound    = New(ErrCodeNotFound, "dispute not found")
	ErrDocumentNotFound   = New(ErrCodeNotFound, "document not found")
	ErrSettingsNotFound   = New(ErrCodeNotFound, "platform settings are not configured")
	ErrUnauthorized       = New(ErrCodeUnauthorized, "authentication required")
	ErrForbidden          = New(ErrCodeForbidden, "you are not allowed to perform this action")
	ErrStaleState         = New(ErrCodeConflict, "the record was changed by another request, reload and retry")

	ErrTokenExpired    = tokenError(ErrCodeInvalidToken, "expired", "verification link has expired")
	ErrTokenMismatch   = tokenError(ErrCodeInvalidToken, "mismatch", "verification link is invalid")
	ErrAlreadyVerified = tokenError(ErrCodeConflict, "already_verified", "institution email is already verified")
)
