package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"law_flow_forms/services"
	"law_flow_forms/services/formengine"

	"github.com/labstack/echo/v4"
)

var statusCodes = map[int]string{
	http.StatusBadRequest:            services.CodeValidation,
	http.StatusUnauthorized:          services.CodeUnauthorized,
	http.StatusForbidden:             services.CodeForbidden,
	http.StatusNotFound:              services.CodeNotFound,
	http.StatusMethodNotAllowed:      services.CodeNotFound,
	http.StatusRequestEntityTooLarge: services.CodePayloadTooLarge,
	http.StatusUnsupportedMediaType:  services.CodeUnsupportedMediaType,
	http.StatusTooManyRequests:       services.CodeRateLimited,
}

// ErrorHandler renders every error as a FormError JSON body. Internal errors are logged
// and replaced by a generic message.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	fe := toFormError(err)
	status := fe.Status()
	if he := (*echo.HTTPError)(nil); errors.As(err, &he) {
		status = he.Code
	}
	if fe.Code == services.CodeInternal {
		log.Printf("[FORMS] %s %s failed: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, fe)
	}
	if writeErr != nil {
		log.Printf("[FORMS] Failed to write error response: %v", writeErr)
	}
}

func toFormError(err error) *services.FormError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code, ok := statusCodes[he.Code]
		if !ok {
			if he.Code < http.StatusInternalServerError {
				code = services.CodeValidation
			} else {
				return services.NewInternalError(err)
			}
		}
		return &services.FormError{Code: code, Message: fmt.Sprint(he.Message)}
	}
	return services.AsFormError(err)
}

// badRequest reports a body or form value that could not be decoded
func badRequest(field, message string) error {
	return services.NewValidationError([]formengine.Violation{{Field: field, Rule: "format", Message: message}})
}
