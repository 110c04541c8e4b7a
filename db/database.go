package db

import (
	"fmt"
	"law_flow_forms/config"
	"log"
	"net/url"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize sets up the database connection.
// PostgreSQL is used when DATABASE_URL is set, Turso (libsql) when TURSO_DATABASE_URL is set,
// otherwise a local SQLite file in WAL mode.
func Initialize(cfg *config.Config) error {
	var err error

	// Determine log level based on environment
	logLevel := logger.Info
	if cfg.Environment == "production" {
		logLevel = logger.Warn
	}

	dialector, backend := Dialector(cfg)

	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Printf("Database connection established (%s)", backend)
	return nil
}

// Dialector picks the gorm dialector for the configured backend
func Dialector(cfg *config.Config) (gorm.Dialector, string) {
	switch {
	case cfg.DatabaseURL != "":
		return postgres.Open(cfg.DatabaseURL), "PostgreSQL"
	case cfg.TursoDatabaseURL != "":
		dsn := cfg.TursoDatabaseURL
		if cfg.TursoAuthToken != "" {
			dsn += "?authToken=" + url.QueryEscape(cfg.TursoAuthToken)
		}
		return sqlite.New(sqlite.Config{DriverName: "libsql", DSN: dsn}), "Turso (libsql)"
	default:
		// Enable WAL mode for better concurrency support
		return sqlite.Open(cfg.DBPath + "?_journal_mode=WAL&_busy_timeout=5000"), "SQLite, WAL mode enabled"
	}
}

// AutoMigrate runs database migrations for the provided models
func AutoMigrate(models ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	err := DB.AutoMigrate(models...)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
