package handlers

import (
	"io"
	"net/http/httptest"
	"testing"

	"law_flow_forms/config"
	"law_flow_forms/db"
	"law_flow_forms/middleware"
	"law_flow_forms/models"
	"law_flow_forms/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// Use unique shared memory name to isolate tests
	dbName := "mem_" + uuid.New().String()
	testDB, err := gorm.Open(sqlite.Open("file:"+dbName+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = testDB.AutoMigrate(
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

	// Set global DB
	db.DB = testDB

	return testDB
}

func setupEcho(method, path string, body io.Reader) (*echo.Echo, echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	// Add config to context
	c.Set("config", &config.Config{
		Environment: "test",
	})

	return e, c, rec
}

type handlerFixture struct {
	db     *gorm.DB
	firm   models.Firm
	staff  models.User
	client models.User
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	testDB := setupTestDB(t)

	firm := models.Firm{Name: "Test Firm"}
	require.NoError(t, testDB.Create(&firm).Error)
	staff := models.User{Name: "Staff", Email: "staff@" + firm.ID + ".test", FirmID: &firm.ID, Role: models.RoleLawyer}
	require.NoError(t, testDB.Create(&staff).Error)
	client := models.User{Name: "Client", Email: "client@" + firm.ID + ".test", FirmID: &firm.ID, Role: models.RoleClient}
	require.NoError(t, testDB.Create(&client).Error)

	cfg := &config.Config{
		AppURL:                "https://forms.example.com",
		FormDefaultExpiryDays: 30,
		FormMaxUploadBytes:    1024,
		FormAllowedFormats:    []string{"pdf", "txt"},
	}
	storage := services.NewLocalStorage(t.TempDir())
	InitFormService(services.NewClientFormService(testDB, services.NewDocumentIntake(storage, cfg), nil, nil, nil, cfg))

	return &handlerFixture{db: testDB, firm: firm, staff: staff, client: client}
}

// asStaff authenticates the context as the fixture's lawyer
func (fx *handlerFixture) asStaff(c echo.Context) {
	c.Set(middleware.ContextKeyUser, &fx.staff)
	c.Set(middleware.ContextKeyFirm, &fx.firm)
}

func (fx *handlerFixture) createTemplate(t *testing.T) *models.FormTemplate {
	tpl, err := services.CreateTemplate(fx.db, fx.firm.ID, fx.staff.ID, services.TemplateInput{
		Name: "Employment check",
		Sections: []services.SectionInput{
			{Key: "s1", Title: "Employment", Fields: []services.FieldInput{
				{Name: "employer", Label: "Employer", FieldType: "text", IsRequired: true},
			}},
		},
	})
	require.NoError(t, err)
	return tpl
}

func (fx *handlerFixture) assign(t *testing.T, tpl *models.FormTemplate) *services.ClientFormView {
	view, err := formService.AssignForm(services.AuditContext{UserID: fx.staff.ID, Origin: models.FormAuditOriginStaff}, fx.firm.ID, fx.client.ID, services.AssignFormInput{TemplateID: tpl.ID})
	require.NoError(t, err)
	return view
}
