package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FormTemplate is an authored intake questionnaire owned by a firm.
// Once a ClientForm references a template it is treated as immutable; edits create a new version.
type FormTemplate struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FirmID      string `gorm:"type:uuid;not null;index:idx_template_firm_name;uniqueIndex:idx_template_active_name" json:"firm_id"`
	Name        string `gorm:"not null;index:idx_template_firm_name" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	FormType    string `gorm:"not null;default:intake" json:"form_type"`
	ProcessType string `gorm:"index" json:"process_type,omitempty"`
	Version     int    `gorm:"not null;default:1" json:"version"`
	IsActive    bool   `gorm:"not null;default:true;index" json:"is_active"`

	// ActiveNameKey is the lowercased name while the version is active and NULL once superseded
	ActiveNameKey *string `gorm:"uniqueIndex:idx_template_active_name" json:"-"`

	CreatedByID       *string `gorm:"type:uuid" json:"created_by_id,omitempty"`
	PreviousVersionID *string `gorm:"type:uuid" json:"previous_version_id,omitempty"`

	// Relationships
	Sections          []FormSection          `gorm:"foreignKey:TemplateID" json:"sections,omitempty"`
	RequiredDocuments []FormRequiredDocument `gorm:"foreignKey:TemplateID" json:"required_documents,omitempty"`
}

// BeforeCreate hook to generate UUID
func (t *FormTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for FormTemplate model
func (FormTemplate) TableName() string {
	return "form_templates"
}

// TemplateNameKey normalizes a template name for the per-firm uniqueness check
func TemplateNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FormSection groups fields. A section may depend on a parent section and carry its own condition.
type FormSection struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TemplateID         string  `gorm:"type:uuid;not null;index" json:"template_id"`
	Title              string  `gorm:"not null" json:"title"`
	Description        string  `gorm:"type:text" json:"description,omitempty"`
	SortOrder          int     `gorm:"not null;default:0" json:"sort_order"`
	IsRequired         bool    `gorm:"not null;default:false" json:"is_required"`
	DependsOnSectionID *string `gorm:"type:uuid" json:"depends_on_section_id,omitempty"`
	ConditionalLogic   string  `gorm:"type:text" json:"conditional_logic,omitempty"` // JSON condition

	Fields []FormField `gorm:"foreignKey:SectionID" json:"fields,omitempty"`
}

// BeforeCreate hook to generate UUID
func (s *FormSection) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for FormSection model
func (FormSection) TableName() string {
	return "form_sections"
}

// FormField is a single question. Name is unique within a template.
type FormField struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SectionID        string `gorm:"type:uuid;not null;index" json:"section_id"`
	TemplateID       string `gorm:"type:uuid;not null;uniqueIndex:idx_field_template_name" json:"template_id"`
	Name             string `gorm:"not null;uniqueIndex:idx_field_template_name" json:"name"`
	Label            string `gorm:"not null" json:"label"`
	FieldType        string `gorm:"not null" json:"field_type"`
	Placeholder      string `json:"placeholder,omitempty"`
	HelpText         string `gorm:"type:text" json:"help_text,omitempty"`
	SortOrder        int    `gorm:"not null;default:0" json:"sort_order"`
	IsRequired       bool   `gorm:"not null;default:false" json:"is_required"`
	ValidationRules  string `gorm:"type:text" json:"validation_rules,omitempty"`  // JSON rules
	Options          string `gorm:"type:text" json:"options,omitempty"`           // JSON array of options
	ConditionalLogic string `gorm:"type:text" json:"conditional_logic,omitempty"` // JSON condition
}

// BeforeCreate hook to generate UUID
func (f *FormField) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for FormField model
func (FormField) TableName() string {
	return "form_fields"
}

// FormRequiredDocument is a document slot the client is asked to upload.
type FormRequiredDocument struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TemplateID       string `gorm:"type:uuid;not null;index" json:"template_id"`
	DocumentType     string `gorm:"not null" json:"document_type"`
	Name             string `gorm:"not null" json:"name"`
	Description      string `gorm:"type:text" json:"description,omitempty"`
	IsRequired       bool   `gorm:"not null;default:true" json:"is_required"`
	AcceptedFormats  string `json:"accepted_formats,omitempty"` // Comma-separated extensions, e.g. "pdf,jpg"
	MaxFileSize      int64  `gorm:"not null;default:0" json:"max_file_size"`
	SortOrder        int    `gorm:"not null;default:0" json:"sort_order"`
	ConditionalLogic string `gorm:"type:text" json:"conditional_logic,omitempty"`
}

// BeforeCreate hook to generate UUID
func (d *FormRequiredDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for FormRequiredDocument model
func (FormRequiredDocument) TableName() string {
	return "form_required_documents"
}

// Formats returns the accepted extensions, lowercased and without leading dots
func (d *FormRequiredDocument) Formats() []string {
	var formats []string
	for _, f := range strings.Split(d.AcceptedFormats, ",") {
		f = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(f)), ".")
		if f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}
