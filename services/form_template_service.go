package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"law_flow_forms/models"
	"law_flow_forms/services/formengine"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TemplateInput is the authoring payload for creating or updating a template
type TemplateInput struct {
	Name              string                  `json:"name"`
	Description       string                  `json:"description"`
	FormType          string                  `json:"formType"`
	ProcessType       string                  `json:"processType"`
	Sections          []SectionInput          `json:"sections"`
	RequiredDocuments []RequiredDocumentInput `json:"requiredDocuments"`
}

// SectionInput describes a section. Key is a client-chosen handle that DependsOn refers to.
type SectionInput struct {
	Key              string          `json:"key"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	SortOrder        int             `json:"sortOrder"`
	IsRequired       bool            `json:"isRequired"`
	DependsOn        string          `json:"dependsOn"`
	ConditionalLogic json.RawMessage `json:"conditionalLogic"`
	Fields           []FieldInput    `json:"fields"`
}

// FieldInput describes a field
type FieldInput struct {
	Name             string          `json:"name"`
	Label            string          `json:"label"`
	FieldType        string          `json:"fieldType"`
	Placeholder      string          `json:"placeholder"`
	HelpText         string          `json:"helpText"`
	SortOrder        int             `json:"sortOrder"`
	IsRequired       bool            `json:"isRequired"`
	ValidationRules  json.RawMessage `json:"validationRules"`
	Options          json.RawMessage `json:"options"`
	ConditionalLogic json.RawMessage `json:"conditionalLogic"`
}

// RequiredDocumentInput describes a document slot. IsRequired defaults to true.
type RequiredDocumentInput struct {
	DocumentType     string          `json:"documentType"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	IsRequired       *bool           `json:"isRequired"`
	AcceptedFormats  []string        `json:"acceptedFormats"`
	MaxFileSize      int64           `json:"maxFileSize"`
	SortOrder        int             `json:"sortOrder"`
	ConditionalLogic json.RawMessage `json:"conditionalLogic"`
}

// CreateTemplate validates and persists a new template for a firm
func CreateTemplate(db *gorm.DB, firmID, authorID string, input TemplateInput) (*models.FormTemplate, error) {
	tpl, err := buildTemplate(firmID, authorID, input)
	if err != nil {
		return nil, err
	}

	if err := ensureTemplateNameFree(db, firmID, tpl.Name, ""); err != nil {
		return nil, err
	}

	if err := db.Create(tpl).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTemplateNameTaken
		}
		return nil, NewInternalError(fmt.Errorf("create template: %w", err))
	}

	log.Printf("[FORMS] Template created: %s (%s) for firm %s", tpl.Name, tpl.ID, firmID)
	return GetTemplate(db, firmID, tpl.ID)
}

// GetTemplate loads a template with ordered sections, fields and document slots.
// An empty firmID skips the firm scope check.
func GetTemplate(db *gorm.DB, firmID, id string) (*models.FormTemplate, error) {
	var tpl models.FormTemplate
	query := db.
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Preload("Sections.Fields", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Preload("RequiredDocuments", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Where("id = ?", id)
	if firmID != "" {
		query = query.Where("firm_id = ?", firmID)
	}

	if err := query.First(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, NewInternalError(err)
	}
	return &tpl, nil
}

// ListActiveTemplates returns a firm's active templates, optionally filtered by process type
func ListActiveTemplates(db *gorm.DB, firmID, processType string) ([]models.FormTemplate, error) {
	var templates []models.FormTemplate

	query := db.Where("firm_id = ? AND is_active = ?", firmID, true)
	if processType != "" {
		query = query.Where("process_type = ?", processType)
	}

	if err := query.Order("name ASC").Find(&templates).Error; err != nil {
		return nil, NewInternalError(err)
	}
	return templates, nil
}

// UpdateTemplate edits a template in place while no client form uses it. Once it is in use
// a new version is created and the old one is deactivated, so existing forms keep their schema.
func UpdateTemplate(db *gorm.DB, firmID, authorID, id string, input TemplateInput) (*models.FormTemplate, error) {
	current, err := GetTemplate(db, firmID, id)
	if err != nil {
		return nil, err
	}
	if !current.IsActive {
		return nil, withMessage(ErrVersionConflict, "this template version has been superseded; edit the latest version")
	}

	next, err := buildTemplate(firmID, authorID, input)
	if err != nil {
		return nil, err
	}
	if err := ensureTemplateNameFree(db, firmID, next.Name, current.ID); err != nil {
		return nil, err
	}

	var inUse int64
	if err := db.Model(&models.ClientForm{}).Where("template_id = ?", current.ID).Count(&inUse).Error; err != nil {
		return nil, NewInternalError(err)
	}

	if inUse == 0 {
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("template_id = ?", current.ID).Delete(&models.FormField{}).Error; err != nil {
				return err
			}
			if err := tx.Where("template_id = ?", current.ID).Delete(&models.FormSection{}).Error; err != nil {
				return err
			}
			if err := tx.Where("template_id = ?", current.ID).Delete(&models.FormRequiredDocument{}).Error; err != nil {
				return err
			}

			if err := tx.Model(&models.FormTemplate{}).Where("id = ?", current.ID).Updates(map[string]interface{}{
				"name":            next.Name,
				"active_name_key": next.ActiveNameKey,
				"description":     next.Description,
				"form_type":       next.FormType,
				"process_type":    next.ProcessType,
			}).Error; err != nil {
				return err
			}

			reparentTemplate(next, current.ID)
			if len(next.Sections) > 0 {
				if err := tx.Create(&next.Sections).Error; err != nil {
					return err
				}
			}
			if len(next.RequiredDocuments) > 0 {
				if err := tx.Create(&next.RequiredDocuments).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			if isUniqueViolation(err) {
				return nil, ErrTemplateNameTaken
			}
			return nil, NewInternalError(fmt.Errorf("update template: %w", err))
		}
		log.Printf("[FORMS] Template %s edited in place", current.ID)
		return GetTemplate(db, firmID, current.ID)
	}

	next.Version = current.Version + 1
	next.PreviousVersionID = &current.ID
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.FormTemplate{}).Where("id = ?", current.ID).Updates(map[string]interface{}{
			"is_active":       false,
			"active_name_key": nil,
		}).Error; err != nil {
			return err
		}
		return tx.Create(next).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTemplateNameTaken
		}
		return nil, NewInternalError(fmt.Errorf("version template: %w", err))
	}

	log.Printf("[FORMS] Template %s superseded by %s (version %d)", current.ID, next.ID, next.Version)
	return GetTemplate(db, firmID, next.ID)
}

func ensureTemplateNameFree(db *gorm.DB, firmID, name, exceptID string) error {
	var count int64
	query := db.Model(&models.FormTemplate{}).
		Where("firm_id = ? AND is_active = ? AND LOWER(name) = LOWER(?)", firmID, true, name)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return NewInternalError(err)
	}
	if count > 0 {
		return ErrTemplateNameTaken
	}
	return nil
}

// isUniqueViolation recognises a unique index failure from sqlite, libsql or postgres
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "SQLSTATE 23505")
}

// buildTemplate turns authoring input into models with ids assigned, then compiles them
// so structural problems are rejected before anything is persisted
func buildTemplate(firmID, authorID string, input TemplateInput) (*models.FormTemplate, error) {
	var problems []formengine.Violation
	add := func(field, rule, msg string) {
		problems = append(problems, formengine.Violation{Field: field, Rule: rule, Message: msg})
	}

	tpl := &models.FormTemplate{
		ID:          uuid.New().String(),
		FirmID:      firmID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		FormType:    strings.TrimSpace(input.FormType),
		ProcessType: strings.TrimSpace(input.ProcessType),
		Version:     1,
		IsActive:    true,
	}
	if authorID != "" {
		tpl.CreatedByID = &authorID
	}
	if tpl.Name == "" {
		add("name", "required", "template name is required")
	} else {
		key := models.TemplateNameKey(tpl.Name)
		tpl.ActiveNameKey = &key
	}
	if tpl.FormType == "" {
		tpl.FormType = "intake"
	}

	keyToID := make(map[string]string, len(input.Sections))
	for i, s := range input.Sections {
		id := uuid.New().String()
		key := strings.TrimSpace(s.Key)
		if key == "" {
			continue
		}
		if _, dup := keyToID[key]; dup {
			add(fmt.Sprintf("sections[%d].key", i), "duplicate", fmt.Sprintf("section key %q is used more than once", key))
			continue
		}
		keyToID[key] = id
	}

	for i, s := range input.Sections {
		path := fmt.Sprintf("sections[%d]", i)
		id, ok := keyToID[strings.TrimSpace(s.Key)]
		if !ok {
			id = uuid.New().String()
		}
		sec := models.FormSection{
			ID:               id,
			TemplateID:       tpl.ID,
			Title:            strings.TrimSpace(s.Title),
			Description:      strings.TrimSpace(s.Description),
			SortOrder:        s.SortOrder,
			IsRequired:       s.IsRequired,
			ConditionalLogic: rawJSONString(s.ConditionalLogic),
		}
		if sec.Title == "" {
			add(path+".title", "required", "section title is required")
		}
		if dep := strings.TrimSpace(s.DependsOn); dep != "" {
			parentID, ok := keyToID[dep]
			if !ok {
				add(path+".dependsOn", "reference", fmt.Sprintf("no section has key %q", dep))
			} else {
				sec.DependsOnSectionID = &parentID
			}
		}

		for j, f := range s.Fields {
			field := models.FormField{
				ID:               uuid.New().String(),
				SectionID:        sec.ID,
				TemplateID:       tpl.ID,
				Name:             strings.TrimSpace(f.Name),
				Label:            strings.TrimSpace(f.Label),
				FieldType:        strings.TrimSpace(f.FieldType),
				Placeholder:      f.Placeholder,
				HelpText:         f.HelpText,
				SortOrder:        f.SortOrder,
				IsRequired:       f.IsRequired,
				ValidationRules:  rawJSONString(f.ValidationRules),
				Options:          rawJSONString(f.Options),
				ConditionalLogic: rawJSONString(f.ConditionalLogic),
			}
			if field.Label == "" {
				field.Label = field.Name
			}
			if field.FieldType == "" {
				add(fmt.Sprintf("%s.fields[%d].fieldType", path, j), "required", "field type is required")
			}
			sec.Fields = append(sec.Fields, field)
		}
		tpl.Sections = append(tpl.Sections, sec)
	}

	for i, d := range input.RequiredDocuments {
		path := fmt.Sprintf("requiredDocuments[%d]", i)
		required := true
		if d.IsRequired != nil {
			required = *d.IsRequired
		}
		doc := models.FormRequiredDocument{
			ID:               uuid.New().String(),
			TemplateID:       tpl.ID,
			DocumentType:     strings.TrimSpace(d.DocumentType),
			Name:             strings.TrimSpace(d.Name),
			Description:      strings.TrimSpace(d.Description),
			IsRequired:       required,
			AcceptedFormats:  strings.Join(normalizeFormats(d.AcceptedFormats), ","),
			MaxFileSize:      d.MaxFileSize,
			SortOrder:        d.SortOrder,
			ConditionalLogic: rawJSONString(d.ConditionalLogic),
		}
		if doc.Name == "" {
			add(path+".name", "required", "document name is required")
		}
		if doc.DocumentType == "" {
			doc.DocumentType = "OTHER"
		}
		tpl.RequiredDocuments = append(tpl.RequiredDocuments, doc)
	}

	schema, err := formengine.Compile(tpl)
	if err != nil {
		var (
			schemaErr *formengine.SchemaError
			cycleErr  *formengine.CycleError
		)
		switch {
		case errors.As(err, &schemaErr):
			problems = append(problems, schemaErr.Problems...)
		case errors.As(err, &cycleErr):
			return nil, AsFormError(sectionKeyCycle(cycleErr, keyToID))
		default:
			return nil, AsFormError(err)
		}
	}
	if len(problems) > 0 {
		return nil, NewValidationError(problems)
	}

	warnUnknownConditionFields(schema)
	return tpl, nil
}

// sectionKeyCycle rewrites a cycle path from generated section ids to the author's section keys
func sectionKeyCycle(err *formengine.CycleError, keyToID map[string]string) *formengine.CycleError {
	idToKey := make(map[string]string, len(keyToID))
	for key, id := range keyToID {
		idToKey[id] = key
	}
	path := make([]string, len(err.Path))
	for i, id := range err.Path {
		if key, ok := idToKey[id]; ok {
			path[i] = key
		} else {
			path[i] = id
		}
	}
	return &formengine.CycleError{Path: path}
}

// reparentTemplate points freshly built children at an existing template id
func reparentTemplate(tpl *models.FormTemplate, templateID string) {
	tpl.ID = templateID
	for i := range tpl.Sections {
		tpl.Sections[i].TemplateID = templateID
		for j := range tpl.Sections[i].Fields {
			tpl.Sections[i].Fields[j].TemplateID = templateID
		}
	}
	for i := range tpl.RequiredDocuments {
		tpl.RequiredDocuments[i].TemplateID = templateID
	}
}

// warnUnknownConditionFields logs conditions that can never be true because they name missing fields
func warnUnknownConditionFields(s *formengine.Schema) {
	check := func(owner string, c formengine.Condition) {
		for _, name := range formengine.ReferencedFields(c) {
			if _, ok := s.FieldByName(name); !ok {
				log.Printf("[FORMS] Template %s: %s condition references unknown field %q and will stay hidden", s.TemplateID, owner, name)
			}
		}
	}
	for _, sec := range s.Sections {
		check("section "+sec.Title, sec.Condition)
		for _, f := range sec.Fields {
			check("field "+f.Name, f.Condition)
		}
	}
	for _, d := range s.Documents {
		check("document "+d.Model.Name, d.Condition)
	}
}

// rawJSONString stores a JSON column as text. A JSON string holding JSON is unwrapped.
func rawJSONString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err == nil {
			return strings.TrimSpace(inner)
		}
	}
	return string(trimmed)
}

func normalizeFormats(formats []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range formats {
		f = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(f)), ".")
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
