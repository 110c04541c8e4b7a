package handlers

import (
	"fmt"
	"net/http"

	"law_flow_forms/middleware"
	"law_flow_forms/services"

	"github.com/labstack/echo/v4"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var formService *services.ClientFormService

// InitFormService sets the service used by the client form handlers
func InitFormService(s *services.ClientFormService) {
	formService = s
}

// AssignFormHandler assigns a template to a client of the firm
// POST /api/clients/:clientId/forms
func AssignFormHandler(c echo.Context) error {
	var input services.AssignFormInput
	if err := c.Bind(&input); err != nil {
		return badRequest("body", "request body is not valid JSON")
	}

	view, err := formService.AssignForm(middleware.GetAuditContext(c), middleware.CurrentFirmID(c), c.Param("clientId"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, view)
}

// ListClientFormsHandler lists the forms assigned to a client
// GET /api/clients/:clientId/forms
func ListClientFormsHandler(c echo.Context) error {
	views, err := formService.ListClientForms(middleware.CurrentFirmID(c), c.Param("clientId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

// GetClientFormHandler returns a form with its answers, documents and completion
// GET /api/forms/:instanceId
func GetClientFormHandler(c echo.Context) error {
	view, err := formService.GetClientForm(middleware.CurrentFirmID(c), c.Param("instanceId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// ReviewFormHandler records a review decision and verification flags
// POST /api/forms/:instanceId/review
func ReviewFormHandler(c echo.Context) error {
	var input services.ReviewInput
	if err := c.Bind(&input); err != nil {
		return badRequest("body", "request body is not valid JSON")
	}

	view, err := formService.ReviewForm(middleware.GetAuditContext(c), middleware.CurrentFirmID(c), c.Param("instanceId"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// ExtendExpiryHandler moves the expiry date of a form
// POST /api/forms/:instanceId/extend
func ExtendExpiryHandler(c echo.Context) error {
	var input services.ExtendExpiryInput
	if err := c.Bind(&input); err != nil {
		return badRequest("body", "request body is not valid JSON")
	}

	view, err := formService.ExtendExpiry(middleware.GetAuditContext(c), middleware.CurrentFirmID(c), c.Param("instanceId"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// GetFormAuditTrailHandler returns the audit history of a form
// GET /api/forms/:instanceId/audit
func GetFormAuditTrailHandler(c echo.Context) error {
	entries, err := formService.GetAuditTrail(middleware.CurrentFirmID(c), c.Param("instanceId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

// ExportClientFormHandler downloads the answers of a form as an Excel workbook
// GET /api/forms/:instanceId/export
func ExportClientFormHandler(c echo.Context) error {
	buf, filename, err := formService.ExportClientForm(middleware.CurrentFirmID(c), c.Param("instanceId"))
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

// DownloadFormDocumentHandler streams an uploaded document
// GET /api/forms/:instanceId/documents/:documentId/download
func DownloadFormDocumentHandler(c echo.Context) error {
	reader, doc, err := formService.DownloadDocument(c.Request().Context(), middleware.CurrentFirmID(c), c.Param("instanceId"), c.Param("documentId"))
	if err != nil {
		return err
	}
	defer reader.Close()

	contentType := doc.MimeType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.FileOriginalName))
	return c.Stream(http.StatusOK, contentType, reader)
}
