package services

import (
	"os"
	"path/filepath"
	"testing"

	"law_flow_forms/config"

	"github.com/stretchr/testify/assert"
)

func useEmailTemplateDir(t *testing.T) string {
	dir := t.TempDir()
	previous := EmailTemplateDir
	EmailTemplateDir = dir
	t.Cleanup(func() { EmailTemplateDir = previous })
	return dir
}

func TestLoadTemplate(t *testing.T) {
	dir := useEmailTemplateDir(t)

	os.WriteFile(filepath.Join(dir, "test_template.html"), []byte("<html><body>Hello {{.UserName}}</body></html>"), 0644)
	os.WriteFile(filepath.Join(dir, "test_template.txt"), []byte("Hello {{.UserName}}"), 0644)
	os.WriteFile(filepath.Join(dir, "test_template_es.html"), []byte("<html><body>Hola {{.UserName}}</body></html>"), 0644)
	os.WriteFile(filepath.Join(dir, "test_template_es.txt"), []byte("Hola {{.UserName}}"), 0644)

	type data struct {
		UserName string
	}
	tplData := data{UserName: "John & Co"}

	t.Run("Load Base Template", func(t *testing.T) {
		html, text, err := loadTemplate("test_template", "en", tplData)
		assert.NoError(t, err)
		assert.Contains(t, html, "Hello John &amp; Co")
		assert.Contains(t, text, "Hello John & Co")
	})

	t.Run("Load Localized Template", func(t *testing.T) {
		html, text, err := loadTemplate("test_template", "es", tplData)
		assert.NoError(t, err)
		assert.Contains(t, html, "Hola John")
		assert.Contains(t, text, "Hola John")
	})

	t.Run("Fallback to Base when Localized Missing", func(t *testing.T) {
		html, _, err := loadTemplate("test_template", "fr", tplData)
		assert.NoError(t, err)
		assert.Contains(t, html, "Hello John")
	})

	t.Run("Template Not Found", func(t *testing.T) {
		_, _, err := loadTemplate("non_existent", "en", tplData)
		assert.Error(t, err)
	})
}

func TestBuildFormAssignmentEmail(t *testing.T) {
	useEmailTemplateDir(t)

	data := FormEmailData{
		ClientName: "Ana",
		FirmName:   "Lasso & Partners",
		FormTitle:  "New client intake",
		AccessURL:  "https://forms.example.com/public/forms/abc",
		ExpiresAt:  "2026-11-13",
	}

	email := BuildFormAssignmentEmail("ana@example.com", data, "en")
	assert.Equal(t, []string{"ana@example.com"}, email.To)
	assert.Equal(t, "Lasso & Partners: please complete New client intake", email.Subject)
	assert.Contains(t, email.HTMLBody, "https://forms.example.com/public/forms/abc")
	assert.Contains(t, email.HTMLBody, "Lasso &amp; Partners")
	assert.Contains(t, email.TextBody, "Open the form: https://forms.example.com/public/forms/abc")
	assert.Contains(t, email.TextBody, "valid until 2026-11-13")
}

func TestBuildFormReminderEmail_UsesOverride(t *testing.T) {
	dir := useEmailTemplateDir(t)
	os.WriteFile(filepath.Join(dir, "form_reminder.html"), []byte("Custom {{.FormTitle}}"), 0644)
	os.WriteFile(filepath.Join(dir, "form_reminder.txt"), []byte("Custom text {{.FormTitle}}"), 0644)

	email := BuildFormReminderEmail("ana@example.com", FormEmailData{FormTitle: "Intake"}, "en")
	assert.Equal(t, "Custom Intake", email.HTMLBody)
	assert.Equal(t, "Custom text Intake", email.TextBody)
	assert.Equal(t, "Reminder: Intake is waiting for you", email.Subject)
}

func TestSendEmail_TestMode(t *testing.T) {
	cfg := &config.Config{
		EmailTestMode: true,
	}
	email := &Email{
		To:       []string{"test@example.com"},
		Subject:  "Test",
		HTMLBody: "Body",
	}

	err := SendEmail(cfg, email)
	assert.NoError(t, err)
}

func TestSendEmail_NoApiKey(t *testing.T) {
	cfg := &config.Config{
		EmailTestMode: false,
		ResendAPIKey:  "",
	}
	email := &Email{
		To:       []string{"test@example.com"},
		Subject:  "Test",
		HTMLBody: "Body",
	}

	err := SendEmail(cfg, email)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "RESEND_API_KEY not configured")
}

func TestSendEmail_NoBody(t *testing.T) {
	cfg := &config.Config{
		EmailTestMode: false,
		ResendAPIKey:  "key",
	}
	email := &Email{
		To:      []string{"test@example.com"},
		Subject: "Test",
	}

	err := SendEmail(cfg, email)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "email must have either HTMLBody or TextBody")
}

func TestTruncate(t *testing.T) {
	s := "Hello World"
	assert.Equal(t, "Hello", truncate(s, 5))
	assert.Equal(t, "Hello World", truncate(s, 20))
}
