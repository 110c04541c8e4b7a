package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User roles
const (
	RoleAdmin  = "admin"
	RoleLawyer = "lawyer"
	RoleStaff  = "staff"
	RoleClient = "client"
)

// User is either a staff member or a client of a firm. Password hashing and
// account management are handled elsewhere; this service only reads users.
type User struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string  `gorm:"not null" json:"name"`
	Email    string  `gorm:"uniqueIndex;not null" json:"email"`
	FirmID   *string `gorm:"type:uuid;index" json:"firm_id"`
	Role     string  `gorm:"not null;default:staff" json:"role"`
	IsActive bool    `gorm:"not null;default:true" json:"is_active"`

	// Relationships
	Firm *Firm `gorm:"foreignKey:FirmID" json:"firm,omitempty"`
}

// BeforeCreate hook to generate UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// HasFirm checks if the user has a firm assigned
func (u *User) HasFirm() bool {
	return u.FirmID != nil && *u.FirmID != ""
}

// IsStaff returns true for every role that may author and review forms
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleLawyer || u.Role == RoleStaff
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
