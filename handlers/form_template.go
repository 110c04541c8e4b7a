package handlers

import (
	"net/http"
	"time"

	"law_flow_forms/db"
	"law_flow_forms/middleware"
	"law_flow_forms/models"
	"law_flow_forms/services"

	"github.com/labstack/echo/v4"
)

type templateSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	FormType    string    `json:"formType"`
	ProcessType string    `json:"processType,omitempty"`
	Version     int       `json:"version"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateTemplateHandler creates a form template for the current firm
// POST /api/templates
func CreateTemplateHandler(c echo.Context) error {
	var input services.TemplateInput
	if err := c.Bind(&input); err != nil {
		return badRequest("body", "request body is not valid JSON")
	}

	user := middleware.GetCurrentUser(c)
	tpl, err := services.CreateTemplate(db.DB, middleware.CurrentFirmID(c), user.ID, input)
	if err != nil {
		return err
	}
	return renderTemplate(c, http.StatusCreated, tpl)
}

// ListTemplatesHandler lists the firm's active templates
// GET /api/templates?processType=family
func ListTemplatesHandler(c echo.Context) error {
	templates, err := services.ListActiveTemplates(db.DB, middleware.CurrentFirmID(c), c.QueryParam("processType"))
	if err != nil {
		return err
	}

	out := make([]templateSummary, 0, len(templates))
	for _, t := range templates {
		out = append(out, templateSummary{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			FormType:    t.FormType,
			ProcessType: t.ProcessType,
			Version:     t.Version,
			IsActive:    t.IsActive,
			CreatedAt:   t.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// GetTemplateHandler returns one template with its sections, fields and document slots
// GET /api/templates/:id
func GetTemplateHandler(c echo.Context) error {
	tpl, err := services.GetTemplate(db.DB, middleware.CurrentFirmID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return renderTemplate(c, http.StatusOK, tpl)
}

// UpdateTemplateHandler edits a template, creating a new version when it is in use
// PUT /api/templates/:id
func UpdateTemplateHandler(c echo.Context) error {
	var input services.TemplateInput
	if err := c.Bind(&input); err != nil {
		return badRequest("body", "request body is not valid JSON")
	}

	user := middleware.GetCurrentUser(c)
	tpl, err := services.UpdateTemplate(db.DB, middleware.CurrentFirmID(c), user.ID, c.Param("id"), input)
	if err != nil {
		return err
	}
	return renderTemplate(c, http.StatusOK, tpl)
}

func renderTemplate(c echo.Context, status int, tpl *models.FormTemplate) error {
	view, err := services.RenderTemplate(tpl)
	if err != nil {
		return err
	}
	return c.JSON(status, view)
}
