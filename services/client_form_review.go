package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"law_flow_forms/models"
	"law_flow_forms/services/formengine"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

var reviewNotesPolicy = bluemonday.UGCPolicy()

// FieldVerification sets the verified flag of one response, addressed by field id
type FieldVerification struct {
	FieldID    string `json:"fieldId"`
	IsVerified bool   `json:"isVerified"`
}

// DocumentVerification sets the verified flag of one uploaded document
type DocumentVerification struct {
	DocumentID string `json:"documentId"`
	IsVerified bool   `json:"isVerified"`
}

// ReviewInput is the body of a staff review
type ReviewInput struct {
	Status                string                 `json:"status"`
	ReviewNotes           string                 `json:"reviewNotes"`
	FieldVerifications    []FieldVerification    `json:"fieldVerifications"`
	DocumentVerifications []DocumentVerification `json:"documentVerifications"`
	Version               int                    `json:"version"`
}

// ExtendExpiryInput moves the expiry of a form
type ExtendExpiryInput struct {
	ExpiresAt *time.Time `json:"expiresAt"`
	Version   int        `json:"version"`
}

func (s *ClientFormService) findFirmForm(firmID, formID string) (*models.ClientForm, error) {
	var form models.ClientForm
	if err := s.DB.Where("id = ? AND firm_id = ?", formID, firmID).First(&form).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, NewInternalError(err)
	}
	return &form, nil
}

// GetClientForm returns the staff view of a form with answers, documents and completion
func (s *ClientFormService) GetClientForm(firmID, formID string) (*ClientFormView, error) {
	form, err := s.findFirmForm(firmID, formID)
	if err != nil {
		return nil, err
	}
	st, err := s.loadState(form)
	if err != nil {
		return nil, err
	}

	notifications, err := GetFormNotifications(s.DB, form.ID)
	if err != nil {
		return nil, NewInternalError(err)
	}

	_, completion := st.completion()
	view := buildClientFormView(form, s.now())
	view.AccessToken = form.AccessToken
	view.AccessURL = s.AccessURL(form.AccessToken)
	view.Completion = &completion
	view.Responses = buildResponseViews(st.responses)
	view.Documents = buildDocumentViews(st.documents)
	view.Notifications = buildNotificationViews(notifications)
	return &view, nil
}

// ListClientForms lists a client's forms, newest first
func (s *ClientFormService) ListClientForms(firmID, clientID string) ([]ClientFormView, error) {
	var forms []models.ClientForm
	err := s.DB.Where("firm_id = ? AND client_id = ?", firmID, clientID).
		Order("created_at DESC").
		Find(&forms).Error
	if err != nil {
		return nil, NewInternalError(err)
	}

	now := s.now()
	views := make([]ClientFormView, 0, len(forms))
	for i := range forms {
		views = append(views, buildClientFormView(&forms[i], now))
	}
	return views, nil
}

// GetAuditTrail returns the audit history of a form belonging to the firm
func (s *ClientFormService) GetAuditTrail(firmID, formID string) ([]AuditEntryView, error) {
	if _, err := s.findFirmForm(firmID, formID); err != nil {
		return nil, err
	}
	entries, err := GetFormAuditTrail(s.DB, formID)
	if err != nil {
		return nil, NewInternalError(err)
	}
	return buildAuditEntryViews(entries), nil
}

// ReviewForm moves a submitted form through review and sets verification flags in one write
func (s *ClientFormService) ReviewForm(actx AuditContext, firmID, formID string, input ReviewInput) (*ClientFormView, error) {
	form, err := s.findFirmForm(firmID, formID)
	if err != nil {
		return nil, err
	}

	target := strings.ToUpper(strings.TrimSpace(input.Status))
	switch target {
	case models.ClientFormStatusReviewed, models.ClientFormStatusApproved, models.ClientFormStatusRejected:
	default:
		return nil, NewValidationError([]formengine.Violation{{Field: "status", Rule: "oneOf", Message: "status must be REVIEWED, APPROVED or REJECTED"}})
	}
	if !form.CanTransitionTo(target) {
		return nil, withMessage(ErrInvalidTransition, fmt.Sprintf("a %s form cannot be moved to %s", form.Status, target))
	}
	if input.Version != 0 && input.Version != form.Version {
		s.Metrics.IncrementConflicts()
		return nil, ErrVersionConflict
	}

	st, err := s.loadState(form)
	if err != nil {
		return nil, err
	}

	responses := make(map[string]*models.FormResponse, len(st.responses))
	for i := range st.responses {
		responses[st.responses[i].FieldID] = &st.responses[i]
	}
	documents := make(map[string]*models.ClientFormDocument, len(st.documents))
	for i := range st.documents {
		documents[st.documents[i].ID] = &st.documents[i]
	}

	var violations []formengine.Violation
	var fieldChanges []*models.FormResponse
	fieldTargets := map[string]bool{}
	for _, v := range input.FieldVerifications {
		r, ok := responses[v.FieldID]
		if !ok {
			violations = append(violations, formengine.Violation{Field: v.FieldID, Rule: "reference", Message: "this question has no answer to verify"})
			continue
		}
		if r.IsVerified != v.IsVerified {
			if _, dup := fieldTargets[r.ID]; !dup {
				fieldChanges = append(fieldChanges, r)
			}
			fieldTargets[r.ID] = v.IsVerified
		}
	}
	var docChanges []*models.ClientFormDocument
	docTargets := map[string]bool{}
	for _, v := range input.DocumentVerifications {
		d, ok := documents[v.DocumentID]
		if !ok {
			violations = append(violations, formengine.Violation{Field: v.DocumentID, Rule: "reference", Message: "this document does not belong to the form"})
			continue
		}
		if d.IsVerified != v.IsVerified {
			if _, dup := docTargets[d.ID]; !dup {
				docChanges = append(docChanges, d)
			}
			docTargets[d.ID] = v.IsVerified
		}
	}
	if len(violations) > 0 {
		return nil, NewValidationError(violations)
	}

	now := s.now()
	reviewerID := ptrIfNotEmpty(actx.UserID)
	updates := map[string]interface{}{
		"status":         target,
		"reviewed_at":    now,
		"reviewed_by_id": reviewerID,
		"version":        form.Version + 1,
		"updated_at":     now,
	}
	if notes := strings.TrimSpace(reviewNotesPolicy.Sanitize(input.ReviewNotes)); notes != "" {
		updates["review_notes"] = notes
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := bumpFormVersion(tx, form, updates); err != nil {
			return err
		}
		for _, r := range fieldChanges {
			if err := tx.Model(&models.FormResponse{}).Where("id = ?", r.ID).Updates(verificationUpdates(fieldTargets[r.ID], reviewerID, now)).Error; err != nil {
				return err
			}
		}
		for _, d := range docChanges {
			if err := tx.Model(&models.ClientFormDocument{}).Where("id = ?", d.ID).Updates(verificationUpdates(docTargets[d.ID], reviewerID, now)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			s.Metrics.IncrementConflicts()
			return nil, ErrVersionConflict
		}
		return nil, NewInternalError(fmt.Errorf("review form: %w", err))
	}

	if actx.Origin == "" {
		actx.Origin = models.FormAuditOriginStaff
	}
	var entries []AuditEntry
	if target != form.Status {
		entries = append(entries, statusChangeEntry(form.ID, form.Status, target))
		s.Metrics.RecordTransition(target)
	}
	for _, r := range fieldChanges {
		entries = append(entries, AuditEntry{
			ClientFormID: form.ID,
			Action:       models.FormAuditFieldVerified,
			FieldName:    r.FieldName,
			OldValue:     strconv.FormatBool(r.IsVerified),
			NewValue:     strconv.FormatBool(fieldTargets[r.ID]),
		})
	}
	for _, d := range docChanges {
		entries = append(entries, AuditEntry{
			ClientFormID: form.ID,
			Action:       models.FormAuditDocumentVerified,
			FieldName:    d.FileOriginalName,
			OldValue:     strconv.FormatBool(d.IsVerified),
			NewValue:     strconv.FormatBool(docTargets[d.ID]),
		})
	}
	s.Audit.Record(actx, entries...)
	log.Printf("[FORMS] Form %s reviewed: %s -> %s", form.ID, form.Status, target)

	return s.GetClientForm(firmID, formID)
}

func verificationUpdates(verified bool, reviewerID *string, now time.Time) map[string]interface{} {
	if !verified {
		return map[string]interface{}{"is_verified": false, "verified_by_id": nil, "verified_at": nil}
	}
	return map[string]interface{}{"is_verified": true, "verified_by_id": reviewerID, "verified_at": now}
}

// ExtendExpiry gives the client more time. It is how staff act on an expired form.
func (s *ClientFormService) ExtendExpiry(actx AuditContext, firmID, formID string, input ExtendExpiryInput) (*ClientFormView, error) {
	form, err := s.findFirmForm(firmID, formID)
	if err != nil {
		return nil, err
	}
	if form.IsTerminal() {
		return nil, withMessage(ErrFormLocked, "the form has already been decided")
	}

	now := s.now()
	if input.ExpiresAt == nil || !input.ExpiresAt.After(now) {
		return nil, NewValidationError([]formengine.Violation{{Field: "expiresAt", Rule: "future", Message: "the expiry date must be in the future"}})
	}
	if input.Version != 0 && input.Version != form.Version {
		s.Metrics.IncrementConflicts()
		return nil, ErrVersionConflict
	}

	err = bumpFormVersion(s.DB, form, map[string]interface{}{
		"expires_at":       *input.ExpiresAt,
		"reminder_sent_at": nil,
		"version":          form.Version + 1,
		"updated_at":       now,
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			s.Metrics.IncrementConflicts()
			return nil, ErrVersionConflict
		}
		return nil, NewInternalError(fmt.Errorf("extend expiry: %w", err))
	}

	old := ""
	if form.ExpiresAt != nil {
		old = form.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if actx.Origin == "" {
		actx.Origin = models.FormAuditOriginStaff
	}
	s.Audit.Record(actx, AuditEntry{
		ClientFormID: form.ID,
		Action:       models.FormAuditExpiryExtended,
		FieldName:    "expires_at",
		OldValue:     old,
		NewValue:     input.ExpiresAt.UTC().Format(time.RFC3339),
	})

	return s.GetClientForm(firmID, formID)
}

// DownloadDocument opens a stored document of a firm's form
func (s *ClientFormService) DownloadDocument(ctx context.Context, firmID, formID, documentID string) (io.ReadCloser, *models.ClientFormDocument, error) {
	if _, err := s.findFirmForm(firmID, formID); err != nil {
		return nil, nil, err
	}

	var doc models.ClientFormDocument
	if err := s.DB.Where("id = ? AND client_form_id = ?", documentID, formID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, NewInternalError(err)
	}

	reader, _, err := s.Intake.Storage.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, NewInternalError(fmt.Errorf("open document %s: %w", doc.ID, err))
	}
	return reader, &doc, nil
}
