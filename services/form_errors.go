package services

import (
	"errors"
	"net/http"

	"law_flow_forms/services/formengine"
)

// Machine-readable error codes returned to API callers
const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeNotFound                = "NOT_FOUND"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeConflict                = "CONFLICT"
	CodeIncompleteSubmission    = "INCOMPLETE_SUBMISSION"
	CodePayloadTooLarge         = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMediaType    = "UNSUPPORTED_MEDIA_TYPE"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeFormLocked              = "FORM_LOCKED"
	CodeDependencyCycle         = "DEPENDENCY_CYCLE"
	CodeTemplateNameTaken       = "TEMPLATE_NAME_TAKEN"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeForbidden               = "FORBIDDEN"
	CodeRateLimited             = "RATE_LIMITED"
	CodeInternal                = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	CodeValidation:              http.StatusUnprocessableEntity,
	CodeNotFound:                http.StatusNotFound,
	CodeTokenExpired:            http.StatusGone,
	CodeConflict:                http.StatusConflict,
	CodeIncompleteSubmission:    http.StatusUnprocessableEntity,
	CodePayloadTooLarge:         http.StatusRequestEntityTooLarge,
	CodeUnsupportedMediaType:    http.StatusUnsupportedMediaType,
	CodeInvalidStatusTransition: http.StatusConflict,
	CodeFormLocked:              http.StatusConflict,
	CodeDependencyCycle:         http.StatusUnprocessableEntity,
	CodeTemplateNameTaken:       http.StatusConflict,
	CodeUnauthorized:            http.StatusUnauthorized,
	CodeForbidden:               http.StatusForbidden,
	CodeRateLimited:             http.StatusTooManyRequests,
	CodeInternal:                http.StatusInternalServerError,
}

// FormError is the client-visible error type of the forms API
type FormError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Violations []formengine.Violation `json:"violations,omitempty"`
	Err        error                  `json:"-"`
}

func (e *FormError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *FormError) Unwrap() error {
	return e.Err
}

// Is matches any FormError with the same code, so sentinels work with errors.Is
func (e *FormError) Is(target error) bool {
	var t *FormError
	if errors.As(target, &t) {
		return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

// Status returns the HTTP status for the error code
func (e *FormError) Status() int {
	if s, ok := codeStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Sentinel errors
var (
	ErrFormNotFound        = &FormError{Code: CodeNotFound, Message: "form not found"}
	ErrTemplateNotFound    = &FormError{Code: CodeNotFound, Message: "template not found"}
	ErrClientNotFound      = &FormError{Code: CodeNotFound, Message: "client not found"}
	ErrDocumentNotFound    = &FormError{Code: CodeNotFound, Message: "document not found"}
	ErrTokenExpired        = &FormError{Code: CodeTokenExpired, Message: "this form link has expired"}
	ErrVersionConflict     = &FormError{Code: CodeConflict, Message: "the form was changed by someone else; reload and try again"}
	ErrFormLocked          = &FormError{Code: CodeFormLocked, Message: "the form has been submitted and can no longer be changed"}
	ErrInvalidTransition   = &FormError{Code: CodeInvalidStatusTransition, Message: "the requested status change is not allowed"}
	ErrTemplateNameTaken   = &FormError{Code: CodeTemplateNameTaken, Message: "a template with this name already exists"}
	ErrPayloadTooLarge     = &FormError{Code: CodePayloadTooLarge, Message: "the file is too large"}
	ErrUnsupportedFileType = &FormError{Code: CodeUnsupportedMediaType, Message: "this file type is not accepted"}
	ErrUnauthorized        = &FormError{Code: CodeUnauthorized, Message: "authentication required"}
	ErrForbidden           = &FormError{Code: CodeForbidden, Message: "insufficient permissions"}
	ErrRateLimited         = &FormError{Code: CodeRateLimited, Message: "too many requests, please try again later"}
)

// NewValidationError wraps field violations
func NewValidationError(violations []formengine.Violation) *FormError {
	return &FormError{Code: CodeValidation, Message: "some answers are not valid", Violations: violations}
}

// NewIncompleteSubmissionError lists the required items still missing
func NewIncompleteSubmissionError(violations []formengine.Violation) *FormError {
	return &FormError{Code: CodeIncompleteSubmission, Message: "required questions or documents are still missing", Violations: violations}
}

// NewInternalError hides the underlying error from callers
func NewInternalError(err error) *FormError {
	return &FormError{Code: CodeInternal, Message: "an unexpected error occurred", Err: err}
}

// withMessage copies a sentinel with a more specific message, keeping it matchable by code
func withMessage(base *FormError, message string) *FormError {
	return &FormError{Code: base.Code, Message: message, Err: base}
}

// AsFormError converts any error into a FormError, mapping unknown errors to INTERNAL_ERROR
func AsFormError(err error) *FormError {
	if err == nil {
		return nil
	}
	var fe *FormError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, formengine.ErrSectionCycle) {
		return &FormError{Code: CodeDependencyCycle, Message: err.Error(), Err: err}
	}
	var schemaErr *formengine.SchemaError
	if errors.As(err, &schemaErr) {
		return NewValidationError(schemaErr.Problems)
	}
	return NewInternalError(err)
}
