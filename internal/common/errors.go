package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes carried by AppError.
const (
	CodeInput               = "INPUT_ERROR"
	CodeStateConflict       = "STATE_CONFLICT"
	CodeRecognition         = "RECOGNITION_ERROR"
	CodeUnknownDocumentType = "UNKNOWN_DOCUMENT_TYPE"
	CodeUnsupportedFeature  = "UNSUPPORTED_FEATURE"
	CodeCollaborator        = "COLLABORATOR_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeConfig              = "CONFIG_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
)

// Common application errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInternal            = errors.New("internal error")
	ErrDatabase            = errors.New("database error")
	ErrStateConflict       = errors.New("state conflict")
	ErrRecognition         = errors.New("no text recognized")
	ErrUnknownDocumentType = errors.New("unknown document type")
	ErrUnsupportedFeature  = errors.New("unsupported feature")
	ErrCollaborator        = errors.New("collaborator call failed")

	// ErrJobCanceled is returned when a worker observes a cancellation at a
	// checkpoint; the caller must not persist any outcome.
	ErrJobCanceled = errors.New("job canceled")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func InputError(message string) error {
	return NewAppError(CodeInput, message, ErrInvalidInput)
}

func StateConflictError(message string) error {
	return NewAppError(CodeStateConflict, message, ErrStateConflict)
}

func NotFoundError(message string) error {
	return NewAppError(CodeNotFound, message, ErrNotFound)
}

func RecognitionError(message string) error {
	return NewAppError(CodeRecognition, message, ErrRecognition)
}

func UnknownDocumentTypeError(label string) error {
	return NewAppError(CodeUnknownDocumentType, fmt.Sprintf("could not determine document type %q", label), ErrUnknownDocumentType)
}

func UnsupportedFeatureError(feature string) error {
	return NewAppError(CodeUnsupportedFeature, fmt.Sprintf("unknown feature: %s", feature), ErrUnsupportedFeature)
}

// CollaboratorError wraps a failed or timed-out OCR/text-generation call.
// Both the sentinel and the underlying cause stay matchable with errors.Is.
func CollaboratorError(message string, cause error) error {
	return NewAppError(CodeCollaborator, message, errors.Join(ErrCollaborator, cause))
}

// CodeOf returns the code of the outermost AppError in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrStateConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to hand back to a client.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != CodeInternal {
		return appErr.Message
	}
	return "internal server error"
}
