package services

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"law_flow_forms/config"
	"law_flow_forms/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupFormsTestDB opens an isolated in-memory database with the forms schema
func setupFormsTestDB(t *testing.T) *gorm.DB {
	dbName := "mem_" + uuid.New().String()
	db, err := gorm.Open(sqlite.Open("file:"+dbName+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&models.Firm{},
		&models.User{},
		&models.Session{},
		&models.FormTemplate{},
		&models.FormSection{},
		&models.FormField{},
		&models.FormRequiredDocument{},
		&models.ClientForm{},
		&models.FormResponse{},
		&models.ClientFormDocument{},
		&models.FormAuditLog{},
		&models.FormNotification{},
	)
	require.NoError(t, err)
	return db
}

// MockStorageProvider is a mock implementation of StorageProvider
type MockStorageProvider struct {
	mock.Mock
}

func (m *MockStorageProvider) UploadReader(ctx context.Context, reader io.Reader, key string, contentType string, size int64) (*StorageResult, error) {
	args := m.Called(ctx, reader, key, contentType, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StorageResult), args.Error(1)
}

func (m *MockStorageProvider) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorageProvider) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.String(1), args.Error(2)
}

func (m *MockStorageProvider) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockNotifier records enqueued notifications
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Enqueue(clientFormID, notificationType string, email *Email) *models.FormNotification {
	args := m.Called(clientFormID, notificationType, email)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.FormNotification)
}

// formsFixture is a firm with a staff member, a client and a service over a fresh database
type formsFixture struct {
	db      *gorm.DB
	svc     *ClientFormService
	storage *MockStorageProvider
	firm    models.Firm
	staff   models.User
	client  models.User
	now     time.Time
}

func newFormsFixture(t *testing.T) *formsFixture {
	db := setupFormsTestDB(t)

	firm := models.Firm{Name: "Lasso & Partners"}
	require.NoError(t, db.Create(&firm).Error)
	staff := models.User{Name: "Laura Lawyer", Email: "laura@" + firm.ID + ".test", FirmID: &firm.ID, Role: models.RoleLawyer}
	require.NoError(t, db.Create(&staff).Error)
	client := models.User{Name: "Carl Client", Email: "carl@" + firm.ID + ".test", FirmID: &firm.ID, Role: models.RoleClient}
	require.NoError(t, db.Create(&client).Error)

	storage := new(MockStorageProvider)
	cfg := &config.Config{AppURL: "https://forms.example.com", FormDefaultExpiryDays: 30}
	svc := NewClientFormService(db, NewDocumentIntake(storage, cfg), nil, NewFormAuditService(db), nil, cfg)

	fx := &formsFixture{
		db:      db,
		svc:     svc,
		storage: storage,
		firm:    firm,
		staff:   staff,
		client:  client,
		now:     time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	svc.Now = func() time.Time { return fx.now }
	return fx
}

func (fx *formsFixture) staffContext() AuditContext {
	return AuditContext{UserID: fx.staff.ID, UserName: fx.staff.Name, UserRole: fx.staff.Role, FirmID: fx.firm.ID, Origin: models.FormAuditOriginStaff}
}

func (fx *formsFixture) clientContext() AuditContext {
	return AuditContext{IPAddress: "203.0.113.7", UserAgent: "test-agent", Origin: models.FormAuditOriginClient}
}

// dependentsInput is a template with an Employment section and a Dependents section that is
// only shown when hasDependents is true, plus an ID document slot.
func dependentsInput() TemplateInput {
	return TemplateInput{
		Name:        "Family intake",
		ProcessType: "family",
		Sections: []SectionInput{
			{
				Key:   "employment",
				Title: "Employment",
				Fields: []FieldInput{
					{Name: "employer", Label: "Employer", FieldType: "text", IsRequired: true, SortOrder: 1},
					{Name: "hasDependents", Label: "Any dependents?", FieldType: "boolean", SortOrder: 2},
				},
			},
			{
				Key:              "dependents",
				Title:            "Dependents",
				DependsOn:        "employment",
				SortOrder:        1,
				ConditionalLogic: json.RawMessage(`{"field":"hasDependents","equals":true}`),
				Fields: []FieldInput{
					{Name: "dependentCount", Label: "How many", FieldType: "number", IsRequired: true, SortOrder: 1},
					{Name: "dependentNames", Label: "Names", FieldType: "textarea", IsRequired: true, SortOrder: 2},
				},
			},
		},
		RequiredDocuments: []RequiredDocumentInput{
			{DocumentType: "ID", Name: "Photo ID", AcceptedFormats: []string{"pdf", "jpg"}, MaxFileSize: 1024},
		},
	}
}

// employmentOnlyInput is a single required text field
func employmentOnlyInput() TemplateInput {
	return TemplateInput{
		Name: "Employment check",
		Sections: []SectionInput{
			{Key: "s1", Title: "Employment", Fields: []FieldInput{
				{Name: "employer", Label: "Employer", FieldType: "text", IsRequired: true},
			}},
		},
	}
}

func (fx *formsFixture) createTemplate(t *testing.T, input TemplateInput) *models.FormTemplate {
	tpl, err := CreateTemplate(fx.db, fx.firm.ID, fx.staff.ID, input)
	require.NoError(t, err)
	return tpl
}

func (fx *formsFixture) assign(t *testing.T, tpl *models.FormTemplate) *ClientFormView {
	view, err := fx.svc.AssignForm(fx.staffContext(), fx.firm.ID, fx.client.ID, AssignFormInput{TemplateID: tpl.ID})
	require.NoError(t, err)
	return view
}

func fieldID(t *testing.T, tpl *models.FormTemplate, name string) string {
	for _, s := range tpl.Sections {
		for _, f := range s.Fields {
			if f.Name == name {
				return f.ID
			}
		}
	}
	t.Fatalf("field %q not in template", name)
	return ""
}

func auditCount(t *testing.T, db *gorm.DB, formID string, action models.FormAuditAction) int64 {
	var n int64
	require.NoError(t, db.Model(&models.FormAuditLog{}).Where("client_form_id = ? AND action = ?", formID, action).Count(&n).Error)
	return n
}

func stored(key string, size int64) *StorageResult {
	return &StorageResult{Key: key, FileName: key[strings.LastIndex(key, "/")+1:], FileSize: size, MimeType: "application/pdf"}
}
