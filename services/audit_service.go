package services

import (
	"law_flow_forms/models"
	"log"

	"gorm.io/gorm"
)

// AuditContext contains contextual information for audit logging
type AuditContext struct {
	UserID    string
	UserName  string
	UserRole  string
	FirmID    string
	IPAddress string
	UserAgent string
	Origin    string // staff, client or system
}

// AuditEntry is one change to record against a client form
type AuditEntry struct {
	ClientFormID string
	Action       models.FormAuditAction
	FieldName    string
	OldValue     string
	NewValue     string
}

// AuditRecorder appends audit entries. Implementations never fail the caller.
type AuditRecorder interface {
	Record(ctx AuditContext, entries ...AuditEntry)
}

// FormAuditService writes audit entries to form_audit_log
type FormAuditService struct {
	DB *gorm.DB
}

// NewFormAuditService creates a new audit recorder
func NewFormAuditService(db *gorm.DB) *FormAuditService {
	return &FormAuditService{DB: db}
}

// Record persists entries after the primary change has committed.
// Write failures are logged and swallowed so they never undo user-visible progress.
func (s *FormAuditService) Record(ctx AuditContext, entries ...AuditEntry) {
	if len(entries) == 0 {
		return
	}

	origin := ctx.Origin
	if origin == "" {
		origin = models.FormAuditOriginSystem
	}

	logs := make([]models.FormAuditLog, 0, len(entries))
	for _, e := range entries {
		logs = append(logs, models.FormAuditLog{
			ClientFormID: e.ClientFormID,
			UserID:       ptrIfNotEmpty(ctx.UserID),
			Action:       e.Action,
			FieldName:    e.FieldName,
			OldValue:     e.OldValue,
			NewValue:     e.NewValue,
			IPAddress:    ctx.IPAddress,
			UserAgent:    ctx.UserAgent,
			Origin:       origin,
		})
	}

	if err := s.DB.Create(&logs).Error; err != nil {
		log.Printf("[AUDIT] Failed to create %d form audit entries for %s: %v", len(logs), entries[0].ClientFormID, err)
	}
}

// ptrIfNotEmpty returns a pointer to the string if not empty, nil otherwise
func ptrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetFormAuditTrail retrieves the audit history of a client form, oldest first
func GetFormAuditTrail(db *gorm.DB, clientFormID string) ([]models.FormAuditLog, error) {
	var logs []models.FormAuditLog
	err := db.Where("client_form_id = ?", clientFormID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}
