package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientForm status constants
const (
	ClientFormStatusPending    = "PENDING"
	ClientFormStatusInProgress = "IN_PROGRESS"
	ClientFormStatusCompleted  = "COMPLETED"
	ClientFormStatusReviewed   = "REVIEWED"
	ClientFormStatusApproved   = "APPROVED"
	ClientFormStatusRejected   = "REJECTED"
	// ClientFormStatusExpired is never stored; it is derived from ExpiresAt
	ClientFormStatusExpired = "EXPIRED"
)

// clientFormTransitions lists the allowed stored-status moves
var clientFormTransitions = map[string][]string{
	ClientFormStatusPending:    {ClientFormStatusInProgress},
	ClientFormStatusInProgress: {ClientFormStatusInProgress, ClientFormStatusCompleted},
	ClientFormStatusCompleted:  {ClientFormStatusReviewed},
	ClientFormStatusReviewed:   {ClientFormStatusReviewed, ClientFormStatusApproved, ClientFormStatusRejected},
}

// ClientForm is a template instance assigned to one client and reachable by an access token
type ClientForm struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FirmID       string `gorm:"type:uuid;not null;index" json:"firm_id"`
	ClientID     string `gorm:"type:uuid;not null;index" json:"client_id"`
	TemplateID   string `gorm:"type:uuid;not null;index" json:"template_id"`
	Title        string `gorm:"not null" json:"title"`
	Instructions string `gorm:"type:text" json:"instructions,omitempty"`
	Status       string `gorm:"not null;default:PENDING;index" json:"status"`
	AccessToken  string `gorm:"uniqueIndex;not null;type:varchar(64)" json:"-"`

	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	ReviewedByID *string    `gorm:"type:uuid" json:"reviewed_by_id,omitempty"`
	ReviewNotes  string     `gorm:"type:text" json:"review_notes,omitempty"`

	CompletionPercentage float64 `gorm:"not null;default:0" json:"completion_percentage"`
	Version              int     `gorm:"not null;default:1" json:"version"`

	AssignedByID   *string    `gorm:"type:uuid" json:"assigned_by_id,omitempty"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`

	// Relationships
	Template  *FormTemplate        `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	Client    *User                `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Responses []FormResponse       `gorm:"foreignKey:ClientFormID" json:"responses,omitempty"`
	Documents []ClientFormDocument `gorm:"foreignKey:ClientFormID" json:"documents,omitempty"`
}

// BeforeCreate hook to generate UUID
func (f *ClientForm) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for ClientForm model
func (ClientForm) TableName() string {
	return "client_forms"
}

// IsTerminal returns true once the form has been approved or rejected
func (f *ClientForm) IsTerminal() bool {
	return f.Status == ClientFormStatusApproved || f.Status == ClientFormStatusRejected
}

// IsExpired checks whether the access window has passed
func (f *ClientForm) IsExpired(now time.Time) bool {
	return f.ExpiresAt != nil && now.After(*f.ExpiresAt)
}

// IsEditable reports whether the client may still change responses and documents
func (f *ClientForm) IsEditable() bool {
	return f.Status == ClientFormStatusPending || f.Status == ClientFormStatusInProgress
}

// EffectiveStatus returns EXPIRED for non-terminal forms past their expiry
func (f *ClientForm) EffectiveStatus(now time.Time) string {
	if !f.IsTerminal() && f.IsExpired(now) {
		return ClientFormStatusExpired
	}
	return f.Status
}

// CanTransitionTo checks whether moving to the target status is allowed
func (f *ClientForm) CanTransitionTo(target string) bool {
	for _, s := range clientFormTransitions[f.Status] {
		if s == target {
			return true
		}
	}
	return false
}
