package main

import (
	"log"
	"time"

	"dca_flow_app_go/config"
	"dca_flow_app_go/db"
	"dca_flow_app_go/handlers"
	"dca_flow_app_go/middleware"
	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	if err := db.Initialize(cfg.DBPath, cfg.TursoDatabaseURL, cfg.TursoAuthToken, cfg.Environment); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(
		&models.Region{},
		&models.DCA{},
		&models.RegionDCAAssignment{},
		&models.User{},
		&models.UserRegionAccess{},
		&models.Session{},
		&models.Case{},
		&models.CaseTimelineEntry{},
		&models.CaseDocument{},
		&models.AuditLog{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// The GLOBAL region must exist before audit derivation can fall back to it
	if err := services.SeedRegions(db.DB); err != nil {
		log.Fatalf("Failed to seed regions: %v", err)
	}
	if err := services.SeedSuperadminFromEnv(db.DB); err != nil {
		log.Fatalf("Failed to seed superadmin: %v", err)
	}
	if cfg.Environment == "development" {
		if err := services.SeedDemoData(db.DB); err != nil {
			log.Printf("Warning: failed to seed demo data: %v", err)
		}
	}

	services.InitSecurityMonitor()
	services.InitializeStorage(cfg)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(echomiddleware.Logger())
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

	// Public routes
	e.POST("/api/login", handlers.LoginHandler, middleware.LoginRateLimiter.Middleware())

	// Authenticated routes
	api := e.Group("/api")
	api.Use(middleware.RequireAuth())
	api.Use(middleware.AuditContext())
	api.Use(middleware.APIRateLimiter.Middleware())
	{
		api.POST("/logout", handlers.LogoutHandler)
		api.GET("/me", handlers.MeHandler)

		api.GET("/dashboard", handlers.DashboardHandler)
		api.GET("/regions", handlers.ListRegionsHandler)

		// Cases
		api.GET("/cases", handlers.ListCasesHandler)
		api.GET("/cases/:id", handlers.GetCaseHandler)
		api.PUT("/cases/:id", handlers.UpdateCaseHandler)
		api.GET("/cases/:id/audit", handlers.CaseAuditHistoryHandler)
		api.GET("/cases/:id/export", handlers.ExportCaseSummaryHandler)

		// Case documents
		api.POST("/cases/:id/documents", handlers.UploadCaseDocumentHandler)
		api.GET("/cases/:id/documents/:docId", handlers.DownloadCaseDocumentHandler)
		api.DELETE("/cases/:id/documents/:docId", handlers.DeleteCaseDocumentHandler)

		// Notifications
		api.GET("/notifications", handlers.ListNotificationsHandler)
		api.PUT("/notifications/:id/read", handlers.MarkNotificationReadHandler)
		api.PUT("/notifications/read-all", handlers.MarkAllNotificationsReadHandler)

		// FedEx-side operations: creation, allocation, import
		fedexOps := api.Group("")
		fedexOps.Use(middleware.RequireRole(
			models.RoleSuperAdmin, models.RoleFedexAdmin, models.RoleFedexManager, models.RoleFedexAnalyst))
		{
			fedexOps.POST("/cases", handlers.CreateCaseHandler)
			fedexOps.POST("/cases/:id/allocate", handlers.AllocateCaseHandler)
			fedexOps.GET("/cases/:id/allocation-preview", handlers.PreviewAllocationHandler)
			fedexOps.GET("/cases/import/template", handlers.DownloadImportTemplateHandler)
			fedexOps.POST("/cases/import", handlers.ImportCasesHandler, middleware.ImportRateLimiter.Middleware())
			fedexOps.GET("/audit-logs", handlers.ListAuditLogsHandler)
			fedexOps.GET("/audit/:type/:id", handlers.ResourceAuditHistoryHandler)
		}

		// Admin-only governance
		admin := api.Group("")
		admin.Use(middleware.RequireGlobalRole())
		{
			admin.GET("/users", handlers.ListUsersHandler)
			admin.POST("/users", handlers.CreateUserHandler)
			admin.PUT("/users/:id", handlers.UpdateUserHandler)
			admin.GET("/users/:id/regions", handlers.ListUserRegionAccessHandler)
			admin.POST("/users/:id/regions", handlers.GrantRegionAccessHandler)
			admin.DELETE("/users/:id/regions", handlers.RevokeRegionAccessHandler)

			admin.GET("/dcas", handlers.ListDCAsHandler)
			admin.POST("/dcas", handlers.CreateDCAHandler)
			admin.GET("/dcas/:id", handlers.GetDCAHandler)
			admin.PUT("/dcas/:id", handlers.UpdateDCAHandler)
			admin.PUT("/dcas/:id/assignments", handlers.UpsertDCAAssignmentHandler)

			admin.GET("/security/alerts", handlers.SecurityAlertsHandler)
		}
	}

	// Hourly session cleanup
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if err := services.CleanupExpiredSessions(db.DB); err != nil {
				log.Printf("Error cleaning up expired sessions: %v", err)
			}
		}
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
