package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"law_flow_forms/config"
	"law_flow_forms/db"
	"law_flow_forms/handlers"
	"law_flow_forms/metrics"
	"law_flow_forms/middleware"
	"law_flow_forms/models"
	"law_flow_forms/services"
	"law_flow_forms/services/jobs"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	if err := db.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(
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
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	storage := services.InitializeStorage(cfg)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifications := services.NewNotificationService(db.DB, &services.ResendSender{Config: cfg}, m, cfg.NotificationQueueSize)
	notifications.Start(context.Background())

	forms := services.NewClientFormService(db.DB, services.NewDocumentIntake(storage, cfg), notifications, nil, m, cfg)
	handlers.InitFormService(forms)

	scheduler, err := jobs.StartScheduler(db.DB, forms, cfg)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	// Middleware
	e.Use(echomiddleware.RequestLogger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: true,
	}))

	// Make config available to handlers
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("config", cfg)
			return next(c)
		}
	})

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Public routes (access token only)
	public := e.Group("/public/forms/:token")
	public.Use(middleware.PublicFormLookupRateLimiter.Middleware())
	public.Use(middleware.AuditContext())
	{
		public.GET("", handlers.GetPublicFormHandler)
		public.POST("/responses", handlers.SubmitResponsesHandler, middleware.PublicFormRateLimiter.Middleware())
		public.POST("/documents", handlers.UploadFormDocumentHandler, middleware.DocumentUploadRateLimiter.Middleware())
	}

	// Staff routes (authentication + firm required)
	api := e.Group("/api")
	api.Use(middleware.RequireAuth())
	api.Use(middleware.RequireFirm())
	api.Use(middleware.RequireStaff())
	api.Use(middleware.AuditContext())
	{
		api.POST("/templates", handlers.CreateTemplateHandler)
		api.GET("/templates", handlers.ListTemplatesHandler)
		api.GET("/templates/:id", handlers.GetTemplateHandler)
		api.PUT("/templates/:id", handlers.UpdateTemplateHandler)

		api.POST("/clients/:clientId/forms", handlers.AssignFormHandler)
		api.GET("/clients/:clientId/forms", handlers.ListClientFormsHandler)

		api.GET("/forms/:instanceId", handlers.GetClientFormHandler)
		api.POST("/forms/:instanceId/review", handlers.ReviewFormHandler)
		api.POST("/forms/:instanceId/extend", handlers.ExtendExpiryHandler)
		api.GET("/forms/:instanceId/audit", handlers.GetFormAuditTrailHandler)
		api.GET("/forms/:instanceId/export", handlers.ExportClientFormHandler)
		api.GET("/forms/:instanceId/documents/:documentId/download", handlers.DownloadFormDocumentHandler)
	}

	// Start background cleanup jobs (runs every hour)
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := services.CleanupExpiredSessions(db.DB); err != nil {
					log.Printf("Error cleaning up expired sessions: %v", err)
				}
			}
		}
	}()

	// Start server
	go func() {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	<-scheduler.Stop().Done()
	notifications.Stop()
}
