package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification types
const (
	FormNotificationAssignment = "ASSIGNMENT"
	FormNotificationReminder   = "REMINDER"
)

// Notification delivery statuses
const (
	FormNotificationQueued = "QUEUED"
	FormNotificationSent   = "SENT"
	FormNotificationFailed = "FAILED"
)

// FormNotification records an email dispatched about a ClientForm
type FormNotification struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientFormID string     `gorm:"type:uuid;not null;index" json:"client_form_id"`
	Type         string     `gorm:"not null" json:"type"`
	Recipient    string     `gorm:"not null" json:"recipient"`
	Status       string     `gorm:"not null;default:QUEUED;index" json:"status"`
	Error        string     `gorm:"type:text" json:"error,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}

// BeforeCreate hook to generate UUID
func (n *FormNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for FormNotification model
func (FormNotification) TableName() string {
	return "form_notifications"
}
