package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"law_flow_forms/models"
	"law_flow_forms/services/formengine"
)

// TemplateView is the wire shape of a template or of a filtered active schema
type TemplateView struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	FormType          string             `json:"formType"`
	ProcessType       string             `json:"processType,omitempty"`
	Version           int                `json:"version"`
	IsActive          bool               `json:"isActive"`
	CreatedAt         time.Time          `json:"createdAt"`
	Sections          []SectionView      `json:"sections"`
	RequiredDocuments []DocumentSlotView `json:"requiredDocuments"`
}

type SectionView struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	SortOrder          int             `json:"sortOrder"`
	IsRequired         bool            `json:"isRequired"`
	DependsOnSectionID *string         `json:"dependsOnSectionId,omitempty"`
	ConditionalLogic   json.RawMessage `json:"conditionalLogic,omitempty"`
	Fields             []FieldView     `json:"fields"`
}

type FieldView struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Label            string              `json:"label"`
	FieldType        string              `json:"fieldType"`
	Placeholder      string              `json:"placeholder,omitempty"`
	HelpText         string              `json:"helpText,omitempty"`
	SortOrder        int                 `json:"sortOrder"`
	IsRequired       bool                `json:"isRequired"`
	ValidationRules  json.RawMessage     `json:"validationRules,omitempty"`
	Options          []formengine.Option `json:"options,omitempty"`
	ConditionalLogic json.RawMessage     `json:"conditionalLogic,omitempty"`
}

type DocumentSlotView struct {
	ID               string          `json:"id"`
	DocumentType     string          `json:"documentType"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	IsRequired       bool            `json:"isRequired"`
	AcceptedFormats  []string        `json:"acceptedFormats"`
	MaxFileSize      int64           `json:"maxFileSize"`
	SortOrder        int             `json:"sortOrder"`
	ConditionalLogic json.RawMessage `json:"conditionalLogic,omitempty"`
}

type ResponseView struct {
	FieldID    string     `json:"fieldId"`
	FieldName  string     `json:"fieldName"`
	Value      string     `json:"value"`
	Data       string     `json:"data,omitempty"`
	IsVerified bool       `json:"isVerified"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type DocumentView struct {
	ID                 string     `json:"id"`
	RequiredDocumentID *string    `json:"requiredDocumentId,omitempty"`
	DocumentType       string     `json:"documentType"`
	FileName           string     `json:"fileName"`
	FileSize           int64      `json:"fileSize"`
	MimeType           string     `json:"mimeType"`
	ContentHash        string     `json:"contentHash"`
	Notes              string     `json:"notes,omitempty"`
	IsVerified         bool       `json:"isVerified"`
	VerifiedAt         *time.Time `json:"verifiedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// PublicFormView is what the token holder sees
type PublicFormView struct {
	Title                string                `json:"title"`
	Instructions         string                `json:"instructions,omitempty"`
	Status               string                `json:"status"`
	ExpiresAt            *time.Time            `json:"expiresAt,omitempty"`
	SubmittedAt          *time.Time            `json:"submittedAt,omitempty"`
	Version              int                   `json:"version"`
	CompletionPercentage float64               `json:"completionPercentage"`
	Completion           formengine.Completion `json:"completion"`
	Schema               TemplateView          `json:"schema"`
	Responses            []ResponseView        `json:"responses"`
	Documents            []DocumentView        `json:"documents"`
}

// ClientFormView is the staff view of an instance
type ClientFormView struct {
	ID                   string                 `json:"id"`
	ClientID             string                 `json:"clientId"`
	TemplateID           string                 `json:"templateId"`
	Title                string                 `json:"title"`
	Instructions         string                 `json:"instructions,omitempty"`
	Status               string                 `json:"status"`
	StoredStatus         string                 `json:"storedStatus"`
	AccessToken          string                 `json:"accessToken,omitempty"`
	AccessURL            string                 `json:"accessUrl,omitempty"`
	ExpiresAt            *time.Time             `json:"expiresAt,omitempty"`
	SubmittedAt          *time.Time             `json:"submittedAt,omitempty"`
	ReviewedAt           *time.Time             `json:"reviewedAt,omitempty"`
	ReviewedByID         *string                `json:"reviewedById,omitempty"`
	ReviewNotes          string                 `json:"reviewNotes,omitempty"`
	CompletionPercentage float64                `json:"completionPercentage"`
	Version              int                    `json:"version"`
	CreatedAt            time.Time              `json:"createdAt"`
	UpdatedAt            time.Time              `json:"updatedAt"`
	Completion           *formengine.Completion `json:"completion,omitempty"`
	Responses            []ResponseView         `json:"responses,omitempty"`
	Documents            []DocumentView         `json:"documents,omitempty"`
	Notifications        []NotificationView     `json:"notifications,omitempty"`
}

// NotificationView is one email sent or queued for a form
type NotificationView struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Recipient string     `json:"recipient"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// AuditEntryView is one line of a form's audit trail
type AuditEntryView struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	UserID    *string   `json:"userId,omitempty"`
	FieldName string    `json:"fieldName,omitempty"`
	OldValue  string    `json:"oldValue,omitempty"`
	NewValue  string    `json:"newValue,omitempty"`
	Origin    string    `json:"origin"`
	IPAddress string    `json:"ipAddress,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RenderTemplate compiles a stored template into its wire shape
func RenderTemplate(tpl *models.FormTemplate) (TemplateView, error) {
	schema, err := formengine.Compile(tpl)
	if err != nil {
		return TemplateView{}, NewInternalError(fmt.Errorf("compile template %s: %w", tpl.ID, err))
	}
	return BuildTemplateView(tpl, schema, nil), nil
}

// BuildTemplateView renders a compiled template. With a non-nil active set only active
// sections, fields and document slots are included.
func BuildTemplateView(tpl *models.FormTemplate, schema *formengine.Schema, active *formengine.ActiveSet) TemplateView {
	view := TemplateView{
		ID:                tpl.ID,
		Name:              tpl.Name,
		Description:       tpl.Description,
		FormType:          tpl.FormType,
		ProcessType:       tpl.ProcessType,
		Version:           tpl.Version,
		IsActive:          tpl.IsActive,
		CreatedAt:         tpl.CreatedAt,
		Sections:          []SectionView{},
		RequiredDocuments: []DocumentSlotView{},
	}

	for _, sec := range schema.Sections {
		if active != nil && !active.Sections[sec.ID] {
			continue
		}
		sv := SectionView{
			ID:                 sec.ID,
			Title:              sec.Title,
			Description:        sec.Model.Description,
			SortOrder:          sec.Model.SortOrder,
			IsRequired:         sec.Model.IsRequired,
			DependsOnSectionID: sec.Model.DependsOnSectionID,
			ConditionalLogic:   rawMessage(sec.Model.ConditionalLogic),
			Fields:             []FieldView{},
		}
		for _, f := range sec.Fields {
			if active != nil && !active.Fields[f.ID] {
				continue
			}
			sv.Fields = append(sv.Fields, FieldView{
				ID:               f.ID,
				Name:             f.Name,
				Label:            f.Label,
				FieldType:        string(f.Type),
				Placeholder:      f.Model.Placeholder,
				HelpText:         f.Model.HelpText,
				SortOrder:        f.Model.SortOrder,
				IsRequired:       f.IsRequired,
				ValidationRules:  rawMessage(f.Model.ValidationRules),
				Options:          f.Options,
				ConditionalLogic: rawMessage(f.Model.ConditionalLogic),
			})
		}
		view.Sections = append(view.Sections, sv)
	}

	for _, d := range schema.Documents {
		if active != nil && !active.Documents[d.ID] {
			continue
		}
		formats := d.Model.Formats()
		if formats == nil {
			formats = []string{}
		}
		view.RequiredDocuments = append(view.RequiredDocuments, DocumentSlotView{
			ID:               d.ID,
			DocumentType:     d.Model.DocumentType,
			Name:             d.Model.Name,
			Description:      d.Model.Description,
			IsRequired:       d.IsRequired,
			AcceptedFormats:  formats,
			MaxFileSize:      d.Model.MaxFileSize,
			SortOrder:        d.Model.SortOrder,
			ConditionalLogic: rawMessage(d.Model.ConditionalLogic),
		})
	}

	return view
}

func buildResponseViews(responses []models.FormResponse) []ResponseView {
	views := make([]ResponseView, 0, len(responses))
	for _, r := range responses {
		views = append(views, ResponseView{
			FieldID:    r.FieldID,
			FieldName:  r.FieldName,
			Value:      r.Value,
			Data:       r.Data,
			IsVerified: r.IsVerified,
			VerifiedAt: r.VerifiedAt,
			UpdatedAt:  r.UpdatedAt,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].FieldName < views[j].FieldName })
	return views
}

func buildNotificationViews(notifications []models.FormNotification) []NotificationView {
	views := make([]NotificationView, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, NotificationView{
			ID:        n.ID,
			Type:      n.Type,
			Recipient: n.Recipient,
			Status:    n.Status,
			Error:     n.Error,
			SentAt:    n.SentAt,
			CreatedAt: n.CreatedAt,
		})
	}
	return views
}

func buildDocumentViews(docs []models.ClientFormDocument) []DocumentView {
	views := make([]DocumentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, buildDocumentView(d))
	}
	return views
}

func buildDocumentView(d models.ClientFormDocument) DocumentView {
	return DocumentView{
		ID:                 d.ID,
		RequiredDocumentID: d.RequiredDocumentID,
		DocumentType:       d.DocumentType,
		FileName:           d.FileOriginalName,
		FileSize:           d.FileSize,
		MimeType:           d.MimeType,
		ContentHash:        d.ContentHash,
		Notes:              d.Notes,
		IsVerified:         d.IsVerified,
		VerifiedAt:         d.VerifiedAt,
		CreatedAt:          d.CreatedAt,
	}
}

func buildClientFormView(f *models.ClientForm, now time.Time) ClientFormView {
	return ClientFormView{
		ID:                   f.ID,
		ClientID:             f.ClientID,
		TemplateID:           f.TemplateID,
		Title:                f.Title,
		Instructions:         f.Instructions,
		Status:               f.EffectiveStatus(now),
		StoredStatus:         f.Status,
		ExpiresAt:            f.ExpiresAt,
		SubmittedAt:          f.SubmittedAt,
		ReviewedAt:           f.ReviewedAt,
		ReviewedByID:         f.ReviewedByID,
		ReviewNotes:          f.ReviewNotes,
		CompletionPercentage: f.CompletionPercentage,
		Version:              f.Version,
		CreatedAt:            f.CreatedAt,
		UpdatedAt:            f.UpdatedAt,
	}
}

func buildAuditEntryViews(entries []models.FormAuditLog) []AuditEntryView {
	views := make([]AuditEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, AuditEntryView{
			ID:        e.ID,
			Action:    string(e.Action),
			UserID:    e.UserID,
			FieldName: e.FieldName,
			OldValue:  e.OldValue,
			NewValue:  e.NewValue,
			Origin:    e.Origin,
			IPAddress: e.IPAddress,
			CreatedAt: e.CreatedAt,
		})
	}
	return views
}

func rawMessage(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}
