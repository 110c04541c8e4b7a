package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	DBPath      string
	Environment string
	UploadDir   string
	// DatabaseURL selects PostgreSQL when set (postgres://...)
	DatabaseURL string
	// Email (Resend)
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string
	EmailTestMode bool // When true, emails are logged to console instead of sent
	// Other
	AllowedOrigins   []string
	AppURL           string
	TursoDatabaseURL string
	TursoAuthToken   string
	// Cloudflare R2 Storage
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string
	// Intake forms
	FormDefaultExpiryDays int      // 0 disables the default expiry
	FormMaxUploadBytes    int64    // Used when a document slot declares no max size
	FormAllowedFormats    []string // Used when a document slot declares no accepted formats
	FormReminderCron      string
	FormReminderWindowHrs int
	NotificationQueueSize int
}

func Load() *Config {
	// Load .env file (ignore error if not present - use system env vars)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	environment := getEnv("ENVIRONMENT", "development")

	return &Config{
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		DBPath:                getEnv("DB_PATH", "db/app.db"),
		Environment:           environment,
		UploadDir:             getEnv("UPLOAD_DIR", "static/uploads"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		ResendAPIKey:          getEnv("RESEND_API_KEY", ""),
		EmailFrom:             getEnv("EMAIL_FROM", "noreply@lexlegalcloud.org"),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "lexlegalcloud Forms"),
		EmailTestMode:         getEnvBool("EMAIL_TEST_MODE", true), // Default true for safety
		AllowedOrigins:        strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		AppURL:                getEnv("APP_URL", "http://localhost:8080"),
		TursoDatabaseURL:      getEnv("TURSO_DATABASE_URL", ""),
		TursoAuthToken:        getEnv("TURSO_AUTH_TOKEN", ""),
		R2AccountID:           getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:         getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey:     getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:          getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:           getEnv("R2_PUBLIC_URL", ""),
		FormDefaultExpiryDays: getEnvInt("FORM_DEFAULT_EXPIRY_DAYS", 30),
		FormMaxUploadBytes:    int64(getEnvInt("FORM_MAX_UPLOAD_MB", 10)) * 1024 * 1024,
		FormAllowedFormats:    splitList(getEnv("FORM_ALLOWED_FORMATS", "pdf,doc,docx,txt,jpg,jpeg,png")),
		FormReminderCron:      getEnv("FORM_REMINDER_CRON", "0 9 * * *"),
		FormReminderWindowHrs: getEnvInt("FORM_REMINDER_WINDOW_HOURS", 48),
		NotificationQueueSize: getEnvInt("NOTIFICATION_QUEUE_SIZE", 100),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Printf("Using default value for %s: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept common boolean representations
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		log.Printf("[WARNING] Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
