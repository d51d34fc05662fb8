// internal/router/router.go
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/javajoker/marketflow/internal/config"
	"github.com/javajoker/marketflow/internal/handlers"
	"github.com/javajoker/marketflow/internal/middleware"
	"github.com/javajoker/marketflow/internal/services"
)

// Version is reported by the health check.
const Version = "1.0.0"

// Services are built by the caller, which also owns their shutdown.
type Services struct {
	Wizards  *services.WizardService
	Sessions *services.SessionService
	Products *services.ProductService
	Drafts   *services.DraftService
	Settings *services.SettingsService
}

func Initialize(svc Services, limiters *middleware.RateLimiters, cfg *config.Config) *gin.Engine {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc.Wizards, svc.Sessions)
	productHandler := handlers.NewProductHandler(svc.Products)
	draftHandler := handlers.NewDraftHandler(svc.Drafts)
	settingsHandler := handlers.NewSettingsHandler(svc.Settings)
	statusHandler := handlers.NewStatusHandler(svc.Products, Version)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	r.Use(limiters.General.Middleware())

	r.GET("/health", statusHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/v1")
	{
		v1.GET("/status", statusHandler.GetStatus)
		v1.GET("/setup/schema", statusHandler.GetSchema)

		// Sign-up / log-in wizard
		wizard := v1.Group("/wizard")
		wizard.Use(limiters.Auth.Middleware())
		{
			wizard.POST("", authHandler.StartWizard)
			wizard.GET("/:id", authHandler.GetWizard)
			wizard.PUT("/:id/mode", authHandler.SetMode)
			wizard.POST("/:id/credentials", authHandler.SubmitCredentials)
			wizard.POST("/:id/username", authHandler.SubmitUsername)
			wizard.POST("/:id/role", authHandler.ChooseRole)
			wizard.POST("/:id/admin-key", authHandler.SubmitAdminKey)
			wizard.POST("/:id/skip-admin", authHandler.SkipAdminGate)
			wizard.POST("/:id/back", authHandler.Back)
		}

		// Session routes
		session := v1.Group("/session")
		{
			session.GET("", authHandler.GetSession)
			session.POST("/logout", middleware.AuthRequired(svc.Sessions), authHandler.Logout)
		}

		// Product routes
		products := v1.Group("/products")
		{
			products.GET("", middleware.OptionalAuth(svc.Sessions), productHandler.GetProducts)
			products.DELETE("/:id", middleware.AuthRequired(svc.Sessions), middleware.SellerRequired(), productHandler.DeleteProduct)
		}

		// Product form routes
		drafts := v1.Group("/drafts/current")
		drafts.Use(middleware.AuthRequired(svc.Sessions), middleware.SellerRequired())
		{
			drafts.GET("", draftHandler.GetDraft)
			drafts.PUT("", draftHandler.UpdateDraft)
			drafts.DELETE("", draftHandler.CancelDraft)
			drafts.POST("/images", limiters.Upload.Middleware(), draftHandler.UploadImages)
			drafts.POST("/image-urls", draftHandler.AddImageURLs)
			drafts.DELETE("/images/:index", draftHandler.RemoveImage)
			drafts.POST("/describe", limiters.AI.Middleware(), draftHandler.Describe)
			drafts.POST("/publish", draftHandler.Publish)
		}

		// Backend connection settings
		settings := v1.Group("/settings/connection")
		{
			settings.GET("", settingsHandler.GetConnection)
			settings.PUT("", middleware.AdminKeyRequired(cfg.Identity.AdminKey), settingsHandler.UpdateConnection)
			settings.DELETE("", middleware.AdminKeyRequired(cfg.Identity.AdminKey), settingsHandler.ResetConnection)
		}
	}

	return r
}
