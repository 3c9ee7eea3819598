package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"report-vault-server/internal/config"
	"report-vault-server/internal/handlers"
	"report-vault-server/internal/middleware"
	"report-vault-server/internal/models"
	"report-vault-server/internal/vault"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, v *vault.Service) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg, v)
	reportHandler := handlers.NewReportHandler(db, cfg, v)
	otpHandler := handlers.NewOTPHandler(db, cfg, v)
	adminHandler := handlers.NewAdminHandler(db)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register/patient", authHandler.RegisterPatient)
			authRoutes.POST("/register/staff", authHandler.RegisterStaff)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg)) // Apply JWT authentication middleware
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
		}

		// OTP challenge routes (patients only)
		otpRoutes := private.Group("/otp")
		otpRoutes.Use(middleware.RoleAuthMiddleware(models.RolePatient))
		{
			otpRoutes.POST("/request", otpHandler.RequestOTP)
			otpRoutes.POST("/verify", otpHandler.VerifyOTP)
		}

		// Report routes
		reportRoutes := private.Group("/reports")
		{
			// Staff side: upload and history
			reportRoutes.POST("/upload", middleware.RoleAuthMiddleware(models.RoleHospitalStaff), reportHandler.UploadReport)
			reportRoutes.GET("/uploads", middleware.RoleAuthMiddleware(models.RoleHospitalStaff), reportHandler.UploadHistory)

			// Patient side: list, view, audit trail. Ownership and OTP gates
			// run inside the vault pipeline.
			reportRoutes.GET("", middleware.RoleAuthMiddleware(models.RolePatient), reportHandler.ListReports)
			reportRoutes.GET("/access-logs", middleware.RoleAuthMiddleware(models.RolePatient), reportHandler.AccessLogs)
			reportRoutes.GET("/:id/view", middleware.RoleAuthMiddleware(models.RolePatient), reportHandler.ViewReport)
		}

		// Admin routes
		adminRoutes := private.Group("/admin")
		adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
		{
			adminRoutes.GET("/staff", adminHandler.GetStaff)
			adminRoutes.PATCH("/staff/:id/verify", adminHandler.VerifyStaff)
			adminRoutes.GET("/users", adminHandler.GetUsers)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
