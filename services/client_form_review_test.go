package services

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"law_flow_forms/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// submittedForm assigns the single-field template and completes it as the client
func submittedForm(t *testing.T, fx *formsFixture) (*models.FormTemplate, *ClientFormView) {
	tpl := fx.createTemplate(t, employmentOnlyInput())
	view := fx.assign(t, tpl)
	_, err := fx.svc.SubmitResponses(fx.clientContext(), view.AccessToken, SubmitResponsesInput{
		Responses: []ResponseInput{{FieldName: "employer", Value: "ACME"}},
	})
	require.NoError(t, err)
	return tpl, view
}

func TestReviewForm(t *testing.T) {
	t.Run("review then approve", func(t *testing.T) {
		fx := newFormsFixture(t)
		tpl, view := submittedForm(t, fx)
		employer := fieldID(t, tpl, "employer")

		reviewed, err := fx.svc.ReviewForm(fx.staffContext(), fx.firm.ID, view.ID, ReviewInput{
			Status:             "reviewed",
			ReviewNotes:        `Looks fine <script>alert(1)</script>`,
			FieldVerifications: []FieldVerification{{FieldID: employer, IsVerified: true}},
			Version:            2,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ClientFormStatusReviewed, reviewed.Status)
		assert.Equal(t, 3, reviewed.Version)
		assert.Equal(t, "Looks fine", reviewed.ReviewNotes)
		require.NotNil(t, reviewed.ReviewedByID)
		assert.Equal(t, fx.staff.ID, *reviewed.ReviewedByID)
		require.Len(t, reviewed.Responses, 1)
		assert.True(t, reviewed.Responses[0].IsVerified)

		assert.Equal(t, int64(1), auditCount(t, fx.db, view.ID, models.FormAuditFieldVerified))

		approved, err := fx.svc.ReviewForm(fx.staffContext(), fx.firm.ID, view.ID, ReviewInput{Status: models.ClientFormStatusApproved})
		require.NoError(t, err)
		assert.Equal(t, models.ClientFormStatusApproved, approved.Status)
		assert.Equal(t, "Looks fine", approved.ReviewNotes, "empty notes keep the previous ones")

		_, err = fx.svc.ReviewForm(fx.staffContext(), fx.firm.ID, view.ID, ReviewInput{Status: models.ClientFormStatusRejected})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		var entry models.FormAuditLog
		require.NoError(t, fx.db.Where("client_form_id = ? AND action = ? AND new_value = ?", view.ID, models.FormAuditStatusChanged, models.ClientFormStatusApproved).First(&entry).Error)
		assert.Equal(t, models.FormAuditOriginStaff, entry.Origin)
		require.NotNil(t, entry.UserID)
		assert.Equal(t, fx.staff.ID, *entry.UserID)
	})

	t.Run("cannot approve before review", func(t *testing.T) {
		fx := newFormsFixture(t)
		_, view := submittedForm(t, fx)

		_, err := fx.svc.ReviewForm(fx.staffContext(), fx.firm.ID, view.ID, ReviewInput{Status: models.ClientFormStatusApproved})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("cannot review an unsubmitted form", func(t *testing.T) {
		fx := newFormsFixture(t)
		tpl := fx.createTemplate(t, employmentOnlyInput())
		view := fx.assign(t, tpl)

		_, err := fx.svc.ReviewForm(fx.staffContext(), fx.firm.ID, view.ID, ReviewInput{Status: models.ClientFormStatusReviewed})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown status", func(t *testing.T) {
		fx := newFormsFixture(t)
		_, view := submittedForm(t, fx)

		_, err := fx.svc.ReviewForm(fx.staffContext(), fx.firm.ID, view.ID, ReviewInput{Status: "PENDING"})
		assert.Equal(t, CodeValidation, AsFormError(err).Code)
	})

	t.Run("stale version", func(t *testing.T) {
		fx := newFormsFixture(t)
		_, view := submittedForm(t, fx)

		_, err := fx.svc.ReviewForm(fx.staffContext(), fx.firm.ID, view.ID, ReviewInput{Status: models.ClientFormStatusReviewed, Version: 1})
		assert.ErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("verification of an unanswered field", func(t *testing.T) {
		fx := newFormsFixture(t)
		_, view := submittedForm(t, fx)

		_, err := fx.svc.ReviewForm(fx.staffContext(), fx.firm.ID, view.ID, ReviewInput{
			Status:             models.ClientFormStatusReviewed,
			FieldVerifications: []FieldVerification{{FieldID: "nope", IsVerified: true}},
		})
		fe := AsFormError(err)
		require.NotNil(t, fe)
		assert.Equal(t, CodeValidation, fe.Code)
		assert.Equal(t, "reference", fe.Violations[0].Rule)

		var form models.ClientForm
		require.NoError(t, fx.db.First(&form, "id = ?", view.ID).Error)
		assert.Equal(t, models.ClientFormStatusCompleted, form.Status)
	})

	t.Run("form of another firm", func(t *testing.T) {
		fx := newFormsFixture(t)
		_, view := submittedForm(t, fx)

		_, err := fx.svc.ReviewForm(fx.staffContext(), "other-firm", view.ID, ReviewInput{Status: models.ClientFormStatusReviewed})
		assert.ErrorIs(t, err, ErrFormNotFound)
	})
}

func TestGetClientForm_ListsNotifications(t *testing.T) {
	fx := newFormsFixture(t)
	tpl := fx.createTemplate(t, employmentOnlyInput())
	view := fx.assign(t, tpl)

	sentAt := fx.now
	require.NoError(t, fx.db.Create(&models.FormNotification{
		ClientFormID: view.ID, Type: models.FormNotificationAssignment, Recipient: fx.client.Email,
		Status: models.FormNotificationSent, SentAt: &sentAt, CreatedAt: fx.now.Add(-time.Hour),
	}).Error)
	require.NoError(t, fx.db.Create(&models.FormNotification{
		ClientFormID: view.ID, Type: models.FormNotificationReminder, Recipient: fx.client.Email,
		Status: models.FormNotificationFailed, Error: "mailbox unavailable", CreatedAt: fx.now,
	}).Error)

	staffView, err := fx.svc.GetClientForm(fx.firm.ID, view.ID)
	require.NoError(t, err)
	require.Len(t, staffView.Notifications, 2)
	assert.Equal(t, models.FormNotificationReminder, staffView.Notifications[0].Type)
	assert.Equal(t, "mailbox unavailable", staffView.Notifications[0].Error)
	assert.Equal(t, models.FormNotificationSent, staffView.Notifications[1].Status)
	require.NotNil(t, staffView.Notifications[1].SentAt)
}

func TestExtendExpiry(t *testing.T) {
	fx := newFormsFixture(t)
	tpl := fx.createTemplate(t, employmentOnlyInput())
	view := fx.assign(t, tpl)
	require.NoError(t, fx.db.Model(&models.ClientForm{}).Where("id = ?", view.ID).Update("reminder_sent_at", fx.now).Error)

	fx.now = fx.now.AddDate(0, 0, 40)
	_, err := fx.svc.GetPublicForm(view.AccessToken)
	require.ErrorIs(t, err, ErrTokenExpired)

	staffView, err := fx.svc.GetClientForm(fx.firm.ID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClientFormStatusExpired, staffView.Status)
	assert.Equal(t, models.ClientFormStatusPending, staffView.StoredStatus)

	past := fx.now.Add(-time.Minute)
	_, err = fx.svc.ExtendExpiry(fx.staffContext(), fx.firm.ID, view.ID, ExtendExpiryInput{ExpiresAt: &past})
	assert.Equal(t, CodeValidation, AsFormError(err).Code)

	next := fx.now.AddDate(0, 0, 7)
	extended, err := fx.svc.ExtendExpiry(fx.staffContext(), fx.firm.ID, view.ID, ExtendExpiryInput{ExpiresAt: &next})
	require.NoError(t, err)
	assert.Equal(t, models.ClientFormStatusPending, extended.Status)
	assert.Equal(t, 2, extended.Version)

	var form models.ClientForm
	require.NoError(t, fx.db.First(&form, "id = ?", view.ID).Error)
	assert.Nil(t, form.ReminderSentAt)

	_, err = fx.svc.GetPublicForm(view.AccessToken)
	assert.NoError(t, err)

	var entry models.FormAuditLog
	require.NoError(t, fx.db.Where("client_form_id = ? AND action = ?", view.ID, models.FormAuditExpiryExtended).First(&entry).Error)
	assert.Equal(t, next.UTC().Format(time.RFC3339), entry.NewValue)
	assert.NotEmpty(t, entry.OldValue)
}

func TestExtendExpiry_DecidedForm(t *testing.T) {
	fx := newFormsFixture(t)
	_, view := submittedForm(t, fx)
	require.NoError(t, fx.db.Model(&models.ClientForm{}).Where("id = ?", view.ID).Update("status", models.ClientFormStatusApproved).Error)

	next := fx.now.AddDate(0, 1, 0)
	_, err := fx.svc.ExtendExpiry(fx.staffContext(), fx.firm.ID, view.ID, ExtendExpiryInput{ExpiresAt: &next})
	assert.ErrorIs(t, err, ErrFormLocked)
}

func TestListClientFormsAndAuditTrail(t *testing.T) {
	fx := newFormsFixture(t)
	_, view := submittedForm(t, fx)

	forms, err := fx.svc.ListClientForms(fx.firm.ID, fx.client.ID)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, view.ID, forms[0].ID)
	assert.Empty(t, forms[0].AccessToken)

	others, err := fx.svc.ListClientForms("other-firm", fx.client.ID)
	require.NoError(t, err)
	assert.Empty(t, others)

	trail, err := fx.svc.GetAuditTrail(fx.firm.ID, view.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(trail))
	for _, e := range trail {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, string(models.FormAuditFormAssigned))
	assert.Contains(t, actions, string(models.FormAuditResponseCreated))
	assert.Contains(t, actions, string(models.FormAuditStatusChanged))

	_, err = fx.svc.GetAuditTrail("other-firm", view.ID)
	assert.ErrorIs(t, err, ErrFormNotFound)
}

func TestDownloadDocument(t *testing.T) {
	fx := newFormsFixture(t)
	tpl := fx.createTemplate(t, dependentsInput())
	view := fx.assign(t, tpl)
	pdf := []byte("%PDF-1.4 passport")

	fx.storage.On("UploadReader", mock.Anything, mock.Anything, mock.AnythingOfType("string"), "application/pdf", int64(len(pdf))).
		Return(stored("firms/f/client-forms/c/passport.pdf", int64(len(pdf))), nil).Once()
	result, err := fx.svc.UploadDocument(context.Background(), fx.clientContext(), view.AccessToken, UploadDocumentInput{
		RequiredDocumentID: tpl.RequiredDocuments[0].ID,
		FileName:           "passport.pdf",
		Size:               int64(len(pdf)),
		Content:            bytes.NewReader(pdf),
	})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.Document.MimeType)

	fx.storage.On("Get", mock.Anything, "firms/f/client-forms/c/passport.pdf").
		Return(io.NopCloser(bytes.NewReader(pdf)), "application/pdf", nil).Once()

	reader, doc, err := fx.svc.DownloadDocument(context.Background(), fx.firm.ID, view.ID, result.Document.ID)
	require.NoError(t, err)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, pdf, body)
	assert.Equal(t, "passport.pdf", doc.FileOriginalName)

	_, _, err = fx.svc.DownloadDocument(context.Background(), fx.firm.ID, view.ID, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	fx.storage.AssertExpectations(t)
}

func TestExportClientForm(t *testing.T) {
	fx := newFormsFixture(t)
	tpl := fx.createTemplate(t, TemplateInput{
		Name: "Household",
		Sections: []SectionInput{{Key: "s", Title: "Household", Fields: []FieldInput{
			{Name: "employer", Label: "Employer", FieldType: "text", IsRequired: true, SortOrder: 1},
			{Name: "benefits", Label: "Benefits", FieldType: "multiselect", SortOrder: 2,
				Options: []byte(`[{"value":"housing","label":"Housing"},{"value":"child","label":"Child support"}]`)},
			{Name: "married", Label: "Married", FieldType: "boolean", SortOrder: 3},
		}}},
	})
	view := fx.assign(t, tpl)
	_, err := fx.svc.SubmitResponses(fx.clientContext(), view.AccessToken, SubmitResponsesInput{
		Responses: []ResponseInput{
			{FieldName: "employer", Value: "ACME"},
			{FieldName: "benefits", Value: []any{"housing", "child"}},
			{FieldName: "married", Value: true},
		},
	})
	require.NoError(t, err)

	buf, name, err := fx.svc.ExportClientForm(fx.firm.ID, view.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "client-form-"+view.ID[:8]))
	assert.True(t, strings.HasSuffix(name, "20260302.xlsx"))

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Responses", "Documents"}, f.GetSheetList())

	title, _ := f.GetCellValue("Summary", "A1")
	assert.Equal(t, "Household", title)

	rows, err := f.GetRows("Responses")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Question", rows[0][1])
	assert.Equal(t, "ACME", rows[1][4])
	assert.Equal(t, "Housing, Child support", rows[2][4])
	assert.Equal(t, "Yes", rows[3][4])
}
