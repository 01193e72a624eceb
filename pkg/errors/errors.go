package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound          = "NOT_FOUND"
	CodeBadRequest        = "BAD_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
	CodeTooManyRequests   = "TOO_MANY_REQUESTS"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeDecryptionFailure = "DECRYPTION_FAILURE"
	CodeEmptyMessage      = "EMPTY_MESSAGE"
	CodeInvalidAttachment = "INVALID_ATTACHMENT"
	CodeUploadFailed      = "UPLOAD_FAILED"
	CodeCallStateConflict = "CALL_STATE_CONFLICT"
	CodeMediaUnavailable  = "MEDIA_UNAVAILABLE"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func TooManyRequests(message string, err error) *AppError {
	return &AppError{
		Code:    CodeTooManyRequests,
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     err,
	}
}

// StoreUnavailable marks a subscription or write that could not reach the
// document store. Callers surface it as a retry prompt.
func StoreUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:    CodeStoreUnavailable,
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

func DecryptionFailure(err error) *AppError {
	return &AppError{
		Code:    CodeDecryptionFailure,
		Message: "Message cannot be decrypted",
		Status:  http.StatusUnprocessableEntity,
		Err:     err,
	}
}

func EmptyMessage() *AppError {
	return &AppError{
		Code:    CodeEmptyMessage,
		Message: "Message must contain text or an attachment",
		Status:  http.StatusBadRequest,
	}
}

func InvalidAttachment(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidAttachment,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// UploadFailed carries the upload collaborator's message through to the sender.
func UploadFailed(err error) *AppError {
	message := "Upload failed"
	if err != nil {
		message = fmt.Sprintf("Upload failed: %v", err)
	}
	return &AppError{
		Code:    CodeUploadFailed,
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func CallStateConflict(message string) *AppError {
	return &AppError{
		Code:    CodeCallStateConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

func MediaUnavailable(err error) *AppError {
	return &AppError{
		Code:    CodeMediaUnavailable,
		Message: "Media search is unavailable right now",
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
