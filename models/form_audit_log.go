package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FormAuditAction represents the type of event recorded against a ClientForm
type FormAuditAction string

const (
	FormAuditFormAssigned     FormAuditAction = "FORM_ASSIGNED"
	FormAuditResponseCreated  FormAuditAction = "RESPONSE_CREATED"
	FormAuditResponseUpdated  FormAuditAction = "RESPONSE_UPDATED"
	FormAuditDocumentUploaded FormAuditAction = "DOCUMENT_UPLOADED"
	FormAuditDocumentRejected FormAuditAction = "DOCUMENT_REJECTED"
	FormAuditStatusChanged    FormAuditAction = "STATUS_CHANGED"
	FormAuditFieldVerified    FormAuditAction = "FIELD_VERIFIED"
	FormAuditDocumentVerified FormAuditAction = "DOCUMENT_VERIFIED"
	FormAuditExpiryExtended   FormAuditAction = "EXPIRY_EXTENDED"
)

// Audit origins
const (
	FormAuditOriginStaff  = "staff"
	FormAuditOriginClient = "client"
	FormAuditOriginSystem = "system"
)

// FormAuditLog is an immutable record of a change to a ClientForm
type FormAuditLog struct {
	ID           string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt    time.Time `gorm:"index:idx_form_audit_form_created,priority:2" json:"created_at"`
	ClientFormID string    `gorm:"type:uuid;not null;index:idx_form_audit_form_created,priority:1" json:"client_form_id"`

	// nil when the actor is the token-holding client or the system
	UserID *string `gorm:"type:uuid;index" json:"user_id,omitempty"`

	Action    FormAuditAction `gorm:"not null;index" json:"action"`
	FieldName string          `json:"field_name,omitempty"`
	OldValue  string          `gorm:"type:text" json:"old_value,omitempty"`
	NewValue  string          `gorm:"type:text" json:"new_value,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Origin    string `gorm:"not null;default:system" json:"origin"`
}

// BeforeCreate generates UUID
func (a *FormAuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// BeforeUpdate prevents modification of audit entries
func (a *FormAuditLog) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound
}

// BeforeDelete prevents deletion of audit entries
func (a *FormAuditLog) BeforeDelete(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound
}

// TableName specifies the table name
func (FormAuditLog) TableName() string {
	return "form_audit_log"
}
