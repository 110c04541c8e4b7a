package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientFormDocument is a file uploaded by the client against a ClientForm
type ClientFormDocument struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientFormID       string  `gorm:"type:uuid;not null;index" json:"client_form_id"`
	RequiredDocumentID *string `gorm:"type:uuid;index" json:"required_document_id,omitempty"`
	DocumentType       string  `gorm:"not null" json:"document_type"`

	FileName         string `gorm:"not null" json:"file_name"`
	FileOriginalName string `gorm:"not null" json:"file_original_name"`
	StorageKey       string `gorm:"not null" json:"-"`
	FileSize         int64  `gorm:"not null" json:"file_size"`
	MimeType         string `json:"mime_type"`
	ContentHash      string `gorm:"type:varchar(64);index" json:"content_hash"` // hex SHA-256
	Notes            string `gorm:"type:text" json:"notes,omitempty"`

	IsVerified   bool       `gorm:"not null;default:false" json:"is_verified"`
	VerifiedByID *string    `gorm:"type:uuid" json:"verified_by_id,omitempty"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
}

// BeforeCreate hook to generate UUID
func (d *ClientFormDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for ClientFormDocument model
func (ClientFormDocument) TableName() string {
	return "client_form_documents"
}
