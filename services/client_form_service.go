package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"law_flow_forms/config"
	"law_flow_forms/metrics"
	"law_flow_forms/models"
	"law_flow_forms/services/formengine"

	"gorm.io/gorm"
)

// AccessTokenBytes is the amount of randomness in a client form access token
const AccessTokenBytes = 32

// ClientFormService manages client form instances: assignment, token access,
// incremental submission, document uploads and staff review
type ClientFormService struct {
	DB       *gorm.DB
	Intake   *DocumentIntake
	Notifier FormNotifier
	Audit    AuditRecorder
	Metrics  *metrics.Metrics
	Config   *config.Config
	Now      func() time.Time

	schemas sync.Map // template id + updated_at -> *formengine.Schema
}

// NewClientFormService wires the instance manager. notifier and m may be nil.
func NewClientFormService(db *gorm.DB, intake *DocumentIntake, notifier FormNotifier, audit AuditRecorder, m *metrics.Metrics, cfg *config.Config) *ClientFormService {
	if audit == nil {
		audit = NewFormAuditService(db)
	}
	return &ClientFormService{
		DB:       db,
		Intake:   intake,
		Notifier: notifier,
		Audit:    audit,
		Metrics:  m,
		Config:   cfg,
		Now:      time.Now,
	}
}

// AssignFormInput is the body of a form assignment
type AssignFormInput struct {
	TemplateID   string     `json:"templateId"`
	Title        string     `json:"title"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	Instructions string     `json:"instructions"`
	SendEmail    bool       `json:"sendEmail"`
}

// ResponseInput is one submitted answer. FieldID wins over FieldName when both are set.
type ResponseInput struct {
	FieldID   string          `json:"fieldId"`
	FieldName string          `json:"fieldName"`
	Value     any             `json:"value"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SubmitResponsesInput is the body of a response submission. Version is the last
// version the client saw; zero skips the up-front check.
type SubmitResponsesInput struct {
	Responses           []ResponseInput `json:"responses"`
	IsPartialSubmission bool            `json:"isPartialSubmission"`
	Version             int             `json:"version"`
}

// UploadDocumentInput describes a document upload against a client form
type UploadDocumentInput struct {
	RequiredDocumentID string
	DocumentType       string
	Notes              string
	Version            int
	FileName           string
	ContentType        string
	Size               int64
	Content            io.Reader
}

// UploadResult is returned after a document upload
type UploadResult struct {
	Document             DocumentView `json:"document"`
	Duplicate            bool         `json:"duplicate"`
	Status               string       `json:"status"`
	Version              int          `json:"version"`
	CompletionPercentage float64      `json:"completionPercentage"`
}

// GenerateAccessToken returns a URL-safe token with AccessTokenBytes of randomness
func GenerateAccessToken() (string, error) {
	b := make([]byte, AccessTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *ClientFormService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// AccessURL is the public link a client opens to fill in the form
func (s *ClientFormService) AccessURL(token string) string {
	base := "http://localhost:8080"
	if s.Config != nil && s.Config.AppURL != "" {
		base = strings.TrimRight(s.Config.AppURL, "/")
	}
	return base + "/public/forms/" + token
}

// schemaFor loads and compiles the template of a form. Compiled schemas are cached;
// templates referenced by a form are never edited in place.
func (s *ClientFormService) schemaFor(templateID string) (*models.FormTemplate, *formengine.Schema, error) {
	tpl, err := GetTemplate(s.DB, "", templateID)
	if err != nil {
		return nil, nil, err
	}

	key := fmt.Sprintf("%s@%d", tpl.ID, tpl.UpdatedAt.UnixNano())
	if cached, ok := s.schemas.Load(key); ok {
		return tpl, cached.(*formengine.Schema), nil
	}

	schema, err := formengine.Compile(tpl)
	if err != nil {
		return nil, nil, NewInternalError(fmt.Errorf("compile template %s: %w", tpl.ID, err))
	}
	s.schemas.Store(key, schema)
	return tpl, schema, nil
}

// AssignForm creates a client form from an active template and optionally emails the client
func (s *ClientFormService) AssignForm(actx AuditContext, firmID, clientID string, input AssignFormInput) (*ClientFormView, error) {
	var client models.User
	if err := s.DB.Preload("Firm").Where("id = ? AND firm_id = ?", clientID, firmID).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, NewInternalError(err)
	}

	tpl, err := GetTemplate(s.DB, firmID, strings.TrimSpace(input.TemplateID))
	if err != nil {
		return nil, err
	}
	if !tpl.IsActive {
		return nil, withMessage(ErrTemplateNotFound, "this template version is no longer active")
	}
	_, schema, err := s.schemaFor(tpl.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := input.ExpiresAt
	if expiresAt == nil && s.Config != nil && s.Config.FormDefaultExpiryDays > 0 {
		t := now.AddDate(0, 0, s.Config.FormDefaultExpiryDays)
		expiresAt = &t
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, NewValidationError([]formengine.Violation{{Field: "expiresAt", Rule: "future", Message: "the expiry date must be in the future"}})
	}

	title := formengine.SanitizeText(input.Title)
	if title == "" {
		title = tpl.Name
	}

	token, err := GenerateAccessToken()
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("generate access token: %w", err))
	}

	completion := schema.Complete(schema.Resolve(nil), nil, nil)
	form := &models.ClientForm{
		FirmID:               firmID,
		ClientID:             client.ID,
		TemplateID:           tpl.ID,
		Title:                title,
		Instructions:         formengine.SanitizeText(input.Instructions),
		Status:               models.ClientFormStatusPending,
		AccessToken:          token,
		ExpiresAt:            expiresAt,
		CompletionPercentage: completion.Percentage,
		Version:              1,
		AssignedByID:         ptrIfNotEmpty(actx.UserID),
	}
	if err := s.DB.Create(form).Error; err != nil {
		return nil, NewInternalError(fmt.Errorf("create client form: %w", err))
	}

	if actx.Origin == "" {
		actx.Origin = models.FormAuditOriginStaff
	}
	s.Audit.Record(actx, AuditEntry{
		ClientFormID: form.ID,
		Action:       models.FormAuditFormAssigned,
		NewValue:     tpl.ID,
	})
	s.Metrics.IncrementAssigned()
	log.Printf("[FORMS] Form %s assigned to client %s from template %s", form.ID, client.ID, tpl.ID)

	if input.SendEmail {
		s.notify(form, &client, models.FormNotificationAssignment)
	}

	view := buildClientFormView(form, now)
	view.AccessToken = token
	view.AccessURL = s.AccessURL(token)
	view.Completion = &completion
	return &view, nil
}

// notify enqueues an assignment or reminder email. It never fails the caller.
func (s *ClientFormService) notify(form *models.ClientForm, client *models.User, notificationType string) *models.FormNotification {
	if s.Notifier == nil || client == nil || client.Email == "" {
		return nil
	}

	data := FormEmailData{
		ClientName:   client.Name,
		FormTitle:    form.Title,
		Instructions: form.Instructions,
		AccessURL:    s.AccessURL(form.AccessToken),
	}
	if client.Firm != nil {
		data.FirmName = client.Firm.Name
	}
	if form.ExpiresAt != nil {
		data.ExpiresAt = form.ExpiresAt.Format("2006-01-02")
	}

	var email *Email
	if notificationType == models.FormNotificationReminder {
		email = BuildFormReminderEmail(client.Email, data, "en")
	} else {
		email = BuildFormAssignmentEmail(client.Email, data, "en")
	}
	return s.Notifier.Enqueue(form.ID, notificationType, email)
}

// ResolveToken finds the form behind an access token. Unknown tokens are NOT_FOUND and
// non-terminal forms past their expiry are TOKEN_EXPIRED.
func (s *ClientFormService) ResolveToken(token string) (*models.ClientForm, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > 64 {
		return nil, ErrFormNotFound
	}

	var form models.ClientForm
	if err := s.DB.Where("access_token = ?", token).First(&form).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, NewInternalError(err)
	}
	if subtle.ConstantTimeCompare([]byte(form.AccessToken), []byte(token)) != 1 {
		return nil, ErrFormNotFound
	}
	if form.EffectiveStatus(s.now()) == models.ClientFormStatusExpired {
		return nil, ErrTokenExpired
	}
	return &form, nil
}

// formState is everything needed to evaluate a form against its template
type formState struct {
	form      *models.ClientForm
	template  *models.FormTemplate
	schema    *formengine.Schema
	responses []models.FormResponse
	documents []models.ClientFormDocument
}

func (s *ClientFormService) loadState(form *models.ClientForm) (*formState, error) {
	tpl, schema, err := s.schemaFor(form.TemplateID)
	if err != nil {
		return nil, err
	}

	var responses []models.FormResponse
	if err := s.DB.Where("client_form_id = ?", form.ID).Find(&responses).Error; err != nil {
		return nil, NewInternalError(err)
	}
	var documents []models.ClientFormDocument
	if err := s.DB.Where("client_form_id = ?", form.ID).Order("created_at ASC").Find(&documents).Error; err != nil {
		return nil, NewInternalError(err)
	}

	return &formState{form: form, template: tpl, schema: schema, responses: responses, documents: documents}, nil
}

func (st *formState) values() map[string]string {
	values := make(map[string]string, len(st.responses))
	for _, r := range st.responses {
		values[r.FieldID] = r.Value
	}
	return values
}

func (st *formState) uploadedSlots() map[string]bool {
	uploaded := make(map[string]bool)
	for _, d := range st.documents {
		if d.RequiredDocumentID != nil {
			uploaded[*d.RequiredDocumentID] = true
		}
	}
	return uploaded
}

func (st *formState) completion() (formengine.ActiveSet, formengine.Completion) {
	values := st.values()
	active := st.schema.Resolve(values)
	return active, st.schema.Complete(active, values, st.uploadedSlots())
}

func (st *formState) publicView(now time.Time) *PublicFormView {
	active, completion := st.completion()
	return &PublicFormView{
		Title:                st.form.Title,
		Instructions:         st.form.Instructions,
		Status:               st.form.EffectiveStatus(now),
		ExpiresAt:            st.form.ExpiresAt,
		SubmittedAt:          st.form.SubmittedAt,
		Version:              st.form.Version,
		CompletionPercentage: completion.Percentage,
		Completion:           completion,
		Schema:               BuildTemplateView(st.template, st.schema, &active),
		Responses:            buildResponseViews(st.responses),
		Documents:            buildDocumentViews(st.documents),
	}
}

// GetPublicForm returns the active part of the template with the answers and documents so far
func (s *ClientFormService) GetPublicForm(token string) (*PublicFormView, error) {
	form, err := s.ResolveToken(token)
	if err != nil {
		return nil, err
	}
	st, err := s.loadState(form)
	if err != nil {
		return nil, err
	}
	return st.publicView(s.now()), nil
}

type responseChange struct {
	field    *formengine.Field
	existing *models.FormResponse
	value    string
	data     string
}

// SubmitResponses validates and saves answers. The whole submission is applied or none of it.
// A non-partial submission completes the form and fails with INCOMPLETE_SUBMISSION while any
// active required field or document is missing. Re-sending answers that are already stored
// writes nothing.
func (s *ClientFormService) SubmitResponses(actx AuditContext, token string, input SubmitResponsesInput) (*PublicFormView, error) {
	start := time.Now()
	defer s.Metrics.ObserveSubmitResponses(start)

	form, err := s.ResolveToken(token)
	if err != nil {
		return nil, err
	}
	st, err := s.loadState(form)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]*models.FormResponse, len(st.responses))
	for i := range st.responses {
		existing[st.responses[i].FieldID] = &st.responses[i]
	}
	documentIDs := make(map[string]bool, len(st.documents))
	for _, d := range st.documents {
		documentIDs[d.ID] = true
	}

	var (
		violations []formengine.Violation
		changes    []responseChange
	)
	next := st.values()
	seen := make(map[string]bool, len(input.Responses))

	for i, in := range input.Responses {
		field, ok := st.schema.Field(strings.TrimSpace(in.FieldID))
		if !ok && in.FieldID == "" {
			field, ok = st.schema.FieldByName(strings.TrimSpace(in.FieldName))
		}
		if !ok {
			name := in.FieldName
			if name == "" {
				name = in.FieldID
			}
			if name == "" {
				name = fmt.Sprintf("responses[%d]", i)
			}
			violations = append(violations, formengine.Violation{Field: name, Rule: "unknown", Message: "this question is not part of the form"})
			continue
		}
		if seen[field.ID] {
			violations = append(violations, formengine.Violation{Field: field.Name, Rule: "duplicate", Message: "this question was answered more than once"})
			continue
		}
		seen[field.ID] = true

		value, v := field.Validate(in.Value, false)
		if v != nil {
			violations = append(violations, *v)
			continue
		}
		if field.Type == formengine.FieldFileRef && value != "" && !documentIDs[value] {
			violations = append(violations, formengine.Violation{Field: field.Name, Rule: "reference", Message: "the referenced document was not uploaded to this form"})
			continue
		}

		data := rawJSONString(in.Data)
		if data != "" && !json.Valid([]byte(data)) {
			violations = append(violations, formengine.Violation{Field: field.Name, Rule: "data", Message: "additional data must be valid JSON"})
			continue
		}

		prev := existing[field.ID]
		if prev == nil && value == "" && data == "" {
			continue
		}
		if prev != nil && prev.Value == value && prev.Data == data {
			continue
		}
		next[field.ID] = value
		changes = append(changes, responseChange{field: field, existing: prev, value: value, data: data})
	}

	target := form.Status
	if form.Status == models.ClientFormStatusPending && len(changes) > 0 {
		target = models.ClientFormStatusInProgress
	}
	if !input.IsPartialSubmission {
		target = models.ClientFormStatusCompleted
	}

	if !form.IsEditable() {
		if len(violations) == 0 && len(changes) == 0 && target == form.Status {
			s.Metrics.RecordSubmission("unchanged")
			return st.publicView(s.now()), nil
		}
		s.Metrics.RecordSubmission("rejected")
		return nil, ErrFormLocked
	}
	if len(violations) > 0 {
		s.Metrics.RecordSubmission("rejected")
		return nil, NewValidationError(violations)
	}
	if len(changes) == 0 && target == form.Status {
		s.Metrics.RecordSubmission("unchanged")
		return st.publicView(s.now()), nil
	}
	if input.Version != 0 && input.Version != form.Version {
		s.Metrics.IncrementConflicts()
		return nil, ErrVersionConflict
	}

	active := st.schema.Resolve(next)
	completion := st.schema.Complete(active, next, st.uploadedSlots())
	if !input.IsPartialSubmission && !completion.IsComplete() {
		s.Metrics.RecordSubmission("incomplete")
		return nil, NewIncompleteSubmissionError(missingViolations(st.schema, completion))
	}
	// A form leaves PENDING only through an accepted write
	if form.Status == models.ClientFormStatusPending && len(changes) == 0 {
		s.Metrics.RecordSubmission("rejected")
		return nil, withMessage(ErrInvalidTransition, "answer at least one question before submitting the form")
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":                target,
		"completion_percentage": completion.Percentage,
		"version":               form.Version + 1,
		"updated_at":            now,
	}
	if target == models.ClientFormStatusCompleted {
		updates["submitted_at"] = now
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := bumpFormVersion(tx, form, updates); err != nil {
			return err
		}
		for _, c := range changes {
			if c.existing != nil {
				err := tx.Model(&models.FormResponse{}).Where("id = ?", c.existing.ID).Updates(map[string]interface{}{
					"value":          c.value,
					"data":           c.data,
					"field_name":     c.field.Name,
					"is_verified":    false,
					"verified_by_id": nil,
					"verified_at":    nil,
					"updated_at":     now,
				}).Error
				if err != nil {
					return err
				}
				continue
			}
			if err := tx.Create(&models.FormResponse{
				ClientFormID: form.ID,
				FieldID:      c.field.ID,
				FieldName:    c.field.Name,
				Value:        c.value,
				Data:         c.data,
			}).Error; err != nil {
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
		return nil, NewInternalError(fmt.Errorf("submit responses: %w", err))
	}

	if actx.Origin == "" {
		actx.Origin = models.FormAuditOriginClient
	}
	entries := make([]AuditEntry, 0, len(changes)+1)
	for _, c := range changes {
		entry := AuditEntry{ClientFormID: form.ID, FieldName: c.field.Name, NewValue: c.value}
		if c.existing != nil {
			entry.Action = models.FormAuditResponseUpdated
			entry.OldValue = c.existing.Value
		} else {
			entry.Action = models.FormAuditResponseCreated
		}
		entries = append(entries, entry)
	}
	for _, step := range statusPath(form.Status, target) {
		entries = append(entries, statusChangeEntry(form.ID, step[0], step[1]))
		s.Metrics.RecordTransition(step[1])
	}
	s.Audit.Record(actx, entries...)

	if target == models.ClientFormStatusCompleted {
		s.Metrics.RecordSubmission("completed")
		log.Printf("[FORMS] Form %s submitted by client", form.ID)
	} else {
		s.Metrics.RecordSubmission("saved")
	}

	return s.reloadPublicView(form.ID)
}

// UploadDocument stores a document for a client form. Bytes reach the blob store before the
// metadata is written and are removed again when the write fails. Re-uploading the same
// content to the same slot returns the stored document.
func (s *ClientFormService) UploadDocument(ctx context.Context, actx AuditContext, token string, input UploadDocumentInput) (*UploadResult, error) {
	form, err := s.ResolveToken(token)
	if err != nil {
		return nil, err
	}
	if !form.IsEditable() {
		return nil, ErrFormLocked
	}
	st, err := s.loadState(form)
	if err != nil {
		return nil, err
	}
	if actx.Origin == "" {
		actx.Origin = models.FormAuditOriginClient
	}

	var slot *formengine.Document
	if id := strings.TrimSpace(input.RequiredDocumentID); id != "" {
		d, ok := st.schema.Document(id)
		if !ok {
			return nil, NewValidationError([]formengine.Violation{{Field: "requiredDocumentId", Rule: "reference", Message: "this document is not requested by the form"}})
		}
		slot = d
	}

	documentType := strings.TrimSpace(input.DocumentType)
	if slot != nil && documentType == "" {
		documentType = slot.Model.DocumentType
	}
	if documentType == "" {
		return nil, NewValidationError([]formengine.Violation{{Field: "documentType", Rule: "required", Message: "document type is required"}})
	}

	if input.Version != 0 && input.Version != form.Version {
		s.Metrics.IncrementConflicts()
		return nil, ErrVersionConflict
	}

	var slotModel *models.FormRequiredDocument
	if slot != nil {
		slotModel = slot.Model
	}
	file, err := s.Intake.Receive(slotModel, input.FileName, input.ContentType, input.Size, input.Content)
	if err != nil {
		if fe := AsFormError(err); fe.Code != CodeInternal {
			s.Audit.Record(actx, AuditEntry{
				ClientFormID: form.ID,
				Action:       models.FormAuditDocumentRejected,
				FieldName:    documentType,
				NewValue:     fmt.Sprintf("%s: %s", input.FileName, fe.Message),
			})
			s.Metrics.RecordUpload("rejected")
		}
		return nil, err
	}

	for _, d := range st.documents {
		if d.ContentHash == file.ContentHash && sameSlot(d, slot, documentType) {
			s.Metrics.RecordUpload("duplicate")
			_, completion := st.completion()
			return &UploadResult{
				Document:             buildDocumentView(d),
				Duplicate:            true,
				Status:               form.EffectiveStatus(s.now()),
				Version:              form.Version,
				CompletionPercentage: completion.Percentage,
			}, nil
		}
	}

	key := GenerateClientFormDocumentKey(form.FirmID, form.ID, file.OriginalName)
	stored, err := s.Intake.Store(ctx, key, file)
	if err != nil {
		return nil, err
	}

	doc := models.ClientFormDocument{
		ClientFormID:     form.ID,
		DocumentType:     documentType,
		FileName:         stored.FileName,
		FileOriginalName: file.OriginalName,
		StorageKey:       stored.Key,
		FileSize:         file.Size,
		MimeType:         file.ContentType,
		ContentHash:      file.ContentHash,
		Notes:            formengine.SanitizeText(input.Notes),
	}
	if slot != nil {
		doc.RequiredDocumentID = &slot.ID
	}

	st.documents = append(st.documents, doc)
	_, completion := st.completion()

	target := form.Status
	if target == models.ClientFormStatusPending {
		target = models.ClientFormStatusInProgress
	}
	now := s.now()

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := bumpFormVersion(tx, form, map[string]interface{}{
			"status":                target,
			"completion_percentage": completion.Percentage,
			"version":               form.Version + 1,
			"updated_at":            now,
		}); err != nil {
			return err
		}
		return tx.Create(&doc).Error
	})
	if err != nil {
		if delErr := s.Intake.Storage.Delete(ctx, stored.Key); delErr != nil {
			log.Printf("[FORMS] Failed to remove orphaned upload %s: %v", stored.Key, delErr)
		}
		if errors.Is(err, ErrVersionConflict) {
			s.Metrics.IncrementConflicts()
			return nil, ErrVersionConflict
		}
		return nil, NewInternalError(fmt.Errorf("save document: %w", err))
	}

	entries := []AuditEntry{{
		ClientFormID: form.ID,
		Action:       models.FormAuditDocumentUploaded,
		FieldName:    documentType,
		NewValue:     file.OriginalName,
	}}
	if target != form.Status {
		entries = append(entries, statusChangeEntry(form.ID, form.Status, target))
		s.Metrics.RecordTransition(target)
	}
	s.Audit.Record(actx, entries...)
	s.Metrics.RecordUpload("stored")

	return &UploadResult{
		Document:             buildDocumentView(doc),
		Status:               target,
		Version:              form.Version + 1,
		CompletionPercentage: completion.Percentage,
	}, nil
}

func (s *ClientFormService) reloadPublicView(formID string) (*PublicFormView, error) {
	var form models.ClientForm
	if err := s.DB.First(&form, "id = ?", formID).Error; err != nil {
		return nil, NewInternalError(err)
	}
	st, err := s.loadState(&form)
	if err != nil {
		return nil, err
	}
	return st.publicView(s.now()), nil
}

// bumpFormVersion applies updates only if nobody changed the form since it was read
func bumpFormVersion(tx *gorm.DB, form *models.ClientForm, updates map[string]interface{}) error {
	result := tx.Model(&models.ClientForm{}).
		Where("id = ? AND version = ?", form.ID, form.Version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func sameSlot(d models.ClientFormDocument, slot *formengine.Document, documentType string) bool {
	if slot != nil {
		return d.RequiredDocumentID != nil && *d.RequiredDocumentID == slot.ID
	}
	return d.RequiredDocumentID == nil && strings.EqualFold(d.DocumentType, documentType)
}

// statusPath lists the stored-status moves from one status to another. Completing a PENDING
// form passes through IN_PROGRESS.
func statusPath(from, to string) [][2]string {
	if from == to {
		return nil
	}
	if from == models.ClientFormStatusPending && to == models.ClientFormStatusCompleted {
		return [][2]string{
			{models.ClientFormStatusPending, models.ClientFormStatusInProgress},
			{models.ClientFormStatusInProgress, models.ClientFormStatusCompleted},
		}
	}
	return [][2]string{{from, to}}
}

func statusChangeEntry(formID, from, to string) AuditEntry {
	return AuditEntry{
		ClientFormID: formID,
		Action:       models.FormAuditStatusChanged,
		FieldName:    "status",
		OldValue:     from,
		NewValue:     to,
	}
}

// missingViolations lists the active required items that block completion
func missingViolations(schema *formengine.Schema, c formengine.Completion) []formengine.Violation {
	violations := make([]formengine.Violation, 0, len(c.MissingFields)+len(c.MissingDocuments))
	for _, name := range c.MissingFields {
		label := name
		if f, ok := schema.FieldByName(name); ok && f.Label != "" {
			label = f.Label
		}
		violations = append(violations, formengine.Violation{Field: name, Rule: "required", Message: label + " is required"})
	}
	for _, id := range c.MissingDocuments {
		label := id
		if d, ok := schema.Document(id); ok && d.Model.Name != "" {
			label = d.Model.Name
		}
		violations = append(violations, formengine.Violation{Field: id, Rule: "required_document", Message: label + " must be uploaded"})
	}
	return violations
}

// QueueReminder enqueues a reminder email for a form whose client is preloaded
func (s *ClientFormService) QueueReminder(form *models.ClientForm) bool {
	return s.notify(form, form.Client, models.FormNotificationReminder) != nil
}
