package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"law_flow_forms/middleware"
	"law_flow_forms/services"

	"github.com/labstack/echo/v4"
)

// GetPublicFormHandler returns the active schema and saved answers for a token holder
// GET /public/forms/:token
func GetPublicFormHandler(c echo.Context) error {
	view, err := formService.GetPublicForm(c.Param("token"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// SubmitResponsesHandler saves answers, and submits the form unless the request is partial
// POST /public/forms/:token/responses
func SubmitResponsesHandler(c echo.Context) error {
	var input services.SubmitResponsesInput
	if err := c.Bind(&input); err != nil {
		return badRequest("body", "request body is not valid JSON")
	}

	view, err := formService.SubmitResponses(middleware.GetAuditContext(c), c.Param("token"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// UploadFormDocumentHandler receives a multipart document upload
// POST /public/forms/:token/documents
func UploadFormDocumentHandler(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return badRequest("file", "a file is required")
	}

	version := 0
	if v := strings.TrimSpace(c.FormValue("version")); v != "" {
		version, err = strconv.Atoi(v)
		if err != nil {
			return badRequest("version", "version must be a number")
		}
	}

	src, err := file.Open()
	if err != nil {
		return services.NewInternalError(err)
	}
	defer src.Close()

	result, err := formService.UploadDocument(c.Request().Context(), middleware.GetAuditContext(c), c.Param("token"), services.UploadDocumentInput{
		RequiredDocumentID: c.FormValue("requiredDocumentId"),
		DocumentType:       c.FormValue("documentType"),
		Notes:              c.FormValue("notes"),
		Version:            version,
		FileName:           file.Filename,
		ContentType:        file.Header.Get(echo.HeaderContentType),
		Size:               file.Size,
		Content:            src,
	})
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}
