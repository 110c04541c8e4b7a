package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FormResponse stores the normalized answer to one field of a ClientForm
type FormResponse struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientFormID string `gorm:"type:uuid;not null;uniqueIndex:idx_response_form_field" json:"client_form_id"`
	FieldID      string `gorm:"type:uuid;not null;uniqueIndex:idx_response_form_field" json:"field_id"`
	FieldName    string `gorm:"not null" json:"field_name"`
	Value        string `gorm:"type:text" json:"value"`
	Data         string `gorm:"type:text" json:"data,omitempty"` // Raw submitted JSON, kept for structured values

	IsVerified   bool       `gorm:"not null;default:false" json:"is_verified"`
	VerifiedByID *string    `gorm:"type:uuid" json:"verified_by_id,omitempty"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
}

// BeforeCreate hook to generate UUID
func (r *FormResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for FormResponse model
func (FormResponse) TableName() string {
	return "form_responses"
}
