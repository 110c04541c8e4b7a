package services

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"

	"law_flow_forms/config"

	"github.com/resend/resend-go/v2"
)

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// EmailTemplateDir holds the optional on-disk overrides of the built-in form emails
var EmailTemplateDir = "templates/emails"

// buildEmailWithFallback renders templateName from EmailTemplateDir and falls back to the
// built-in bodies when the files are missing or broken
func buildEmailWithFallback(templateName, lang string, tmplData interface{}, toEmail, fallbackHTML, fallbackText string) *Email {
	htmlBody, textBody, err := loadTemplate(templateName, lang, tmplData)
	if err != nil {
		htmlBody, textBody = renderInline(templateName, fallbackHTML, fallbackText, tmplData)
	}

	return &Email{
		To:       []string{toEmail},
		HTMLBody: htmlBody,
		TextBody: textBody,
	}
}

// loadTemplate loads an email template from EmailTemplateDir.
// It attempts templateName + "_" + lang + ".html/.txt" and falls back to templateName + ".html/.txt".
func loadTemplate(templateName string, lang string, data interface{}) (html string, text string, err error) {
	loadAndExec := func(ext string) (string, error) {
		path := filepath.Join(EmailTemplateDir, fmt.Sprintf("%s_%s%s", templateName, lang, ext))
		content, err := os.ReadFile(path)
		if err != nil {
			path = filepath.Join(EmailTemplateDir, templateName+ext)
			content, err = os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("failed to read template %s: %v", path, err)
			}
		}

		var buf bytes.Buffer
		if ext == ".html" {
			tmpl, err := template.New(filepath.Base(path)).Parse(string(content))
			if err != nil {
				return "", fmt.Errorf("failed to parse template %s: %v", path, err)
			}
			err = tmpl.Execute(&buf, data)
			if err != nil {
				return "", fmt.Errorf("failed to execute template %s: %v", path, err)
			}
			return buf.String(), nil
		}

		tmpl, err := texttemplate.New(filepath.Base(path)).Parse(string(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse template %s: %v", path, err)
		}
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("failed to execute template %s: %v", path, err)
		}
		return buf.String(), nil
	}

	htmlContent, err := loadAndExec(".html")
	if err != nil {
		return "", "", err
	}

	textContent, err := loadAndExec(".txt")
	if err != nil {
		return "", "", err
	}

	return htmlContent, textContent, nil
}

func renderInline(name, htmlSrc, textSrc string, data interface{}) (string, string) {
	var htmlBuf, textBuf bytes.Buffer
	if err := template.Must(template.New(name + ".html").Parse(htmlSrc)).Execute(&htmlBuf, data); err != nil {
		log.Printf("Error rendering built-in %s html email: %v", name, err)
	}
	if err := texttemplate.Must(texttemplate.New(name + ".txt").Parse(textSrc)).Execute(&textBuf, data); err != nil {
		log.Printf("Error rendering built-in %s text email: %v", name, err)
	}
	return htmlBuf.String(), textBuf.String()
}

// SendEmail sends an email using Resend API
func SendEmail(cfg *config.Config, email *Email) error {
	// In development mode, log the email instead of sending
	if cfg.EmailTestMode {
		logEmailToConsole(email)
		log.Printf("✅ Email logged successfully (development mode - not actually sent)")
		return nil
	}

	if cfg.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY not configured")
	}

	client := resend.NewClient(cfg.ResendAPIKey)

	fromAddress := fmt.Sprintf("%s <%s>", cfg.EmailFromName, cfg.EmailFrom)

	params := &resend.SendEmailRequest{
		From:    fromAddress,
		To:      email.To,
		Subject: email.Subject,
	}

	// Set body (prefer HTML if available)
	if email.HTMLBody != "" {
		params.Html = email.HTMLBody
	}
	if email.TextBody != "" {
		params.Text = email.TextBody
	}

	if params.Html == "" && params.Text == "" {
		return fmt.Errorf("email must have either HTMLBody or TextBody")
	}

	sent, err := client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %v", err)
	}

	log.Printf("Email sent successfully via Resend (ID: %s) to: %v", sent.Id, email.To)
	return nil
}

// logEmailToConsole logs email details to console in development mode
func logEmailToConsole(email *Email) {
	separator := strings.Repeat("=", 80)
	log.Printf("\n%s\n📧 EMAIL (Development Mode - Not Actually Sent)\n%s", separator, separator)
	log.Printf("To: %v", email.To)
	log.Printf("Subject: %s", email.Subject)
	log.Printf("\n--- TEXT BODY ---\n%s", email.TextBody)
	log.Printf("\n--- HTML BODY (first 500 chars) ---\n%s...", truncate(email.HTMLBody, 500))
	log.Printf("%s\n", separator)
}

// truncate truncates a string to a maximum length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// ResendSender sends form emails through SendEmail with a fixed configuration
type ResendSender struct {
	Config *config.Config
}

// Send implements EmailSender
func (s *ResendSender) Send(email *Email) error {
	return SendEmail(s.Config, email)
}

// FormEmailData contains data for the form assignment and reminder templates
type FormEmailData struct {
	ClientName   string
	FirmName     string
	FormTitle    string
	Instructions string
	AccessURL    string
	ExpiresAt    string
}

const formAssignmentHTML = `<html><body>
<p>Hello {{.ClientName}},</p>
<p>{{.FirmName}} has asked you to complete <strong>{{.FormTitle}}</strong>.</p>
{{if .Instructions}}<p>{{.Instructions}}</p>{{end}}
<p><a href="{{.AccessURL}}">Open the form</a></p>
{{if .ExpiresAt}}<p>The link is valid until {{.ExpiresAt}}.</p>{{end}}
</body></html>`

const formAssignmentText = `Hello {{.ClientName}},

{{.FirmName}} has asked you to complete "{{.FormTitle}}".
{{if .Instructions}}
{{.Instructions}}
{{end}}
Open the form: {{.AccessURL}}
{{if .ExpiresAt}}The link is valid until {{.ExpiresAt}}.{{end}}
`

const formReminderHTML = `<html><body>
<p>Hello {{.ClientName}},</p>
<p>This is a reminder that <strong>{{.FormTitle}}</strong> from {{.FirmName}} is still waiting for you.</p>
<p><a href="{{.AccessURL}}">Continue the form</a></p>
{{if .ExpiresAt}}<p>The link expires on {{.ExpiresAt}}.</p>{{end}}
</body></html>`

const formReminderText = `Hello {{.ClientName}},

This is a reminder that "{{.FormTitle}}" from {{.FirmName}} is still waiting for you.

Continue the form: {{.AccessURL}}
{{if .ExpiresAt}}The link expires on {{.ExpiresAt}}.{{end}}
`

// BuildFormAssignmentEmail creates the email sent when a form is assigned to a client
func BuildFormAssignmentEmail(clientEmail string, data FormEmailData, lang string) *Email {
	email := buildEmailWithFallback("form_assignment", lang, data, clientEmail, formAssignmentHTML, formAssignmentText)
	email.Subject = fmt.Sprintf("%s: please complete %s", data.FirmName, data.FormTitle)
	return email
}

// BuildFormReminderEmail creates the reminder sent before a form link expires
func BuildFormReminderEmail(clientEmail string, data FormEmailData, lang string) *Email {
	email := buildEmailWithFallback("form_reminder", lang, data, clientEmail, formReminderHTML, formReminderText)
	email.Subject = fmt.Sprintf("Reminder: %s is waiting for you", data.FormTitle)
	return email
}
