// cmd/server/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/javajoker/marketflow/internal/cache"
	"github.com/javajoker/marketflow/internal/config"
	"github.com/javajoker/marketflow/internal/database"
	"github.com/javajoker/marketflow/internal/i18n"
	"github.com/javajoker/marketflow/internal/middleware"
	"github.com/javajoker/marketflow/internal/router"
	"github.com/javajoker/marketflow/internal/services"
	"github.com/javajoker/marketflow/internal/utils"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.LocalesPath, cfg.I18n.DefaultLocale); err != nil {
		return fmt.Errorf("failed to initialize i18n: %w", err)
	}

	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Record store: sessions, local accounts, connection overrides
	store, closeStore, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize record store: %w", err)
	}
	defer closeStore()

	settingsService := services.NewSettingsService(store, cfg)
	if err := settingsService.Load(ctx); err != nil {
		logrus.WithError(err).Warn("Ignoring stored connection settings")
	}

	patterns, err := services.LoadErrorPatterns(cfg.Classifier.PatternsFile)
	if err != nil {
		return err
	}
	classifier := services.NewErrorClassifier(patterns)

	provider, err := services.NewIdentityProvider(cfg.Identity.Provider, store, settingsService)
	if err != nil {
		return err
	}

	repo, db, err := productRepository(cfg, settingsService)
	if err != nil {
		return err
	}
	if db != nil {
		defer database.Close(db)
	}

	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return err
	}

	var generator services.TextGenerator
	if cfg.GenAI.APIKey != "" {
		gemini, err := services.NewGeminiGenerator(ctx, cfg.GenAI.APIKey, cfg.GenAI.Model)
		if err != nil {
			logrus.WithError(err).Warn("Description generation disabled")
		} else {
			generator = gemini
		}
	}

	sessionService := services.NewSessionService(store, provider, cfg)
	productService := services.NewProductService(repo, classifier, cfg)
	wizardService := services.NewWizardService(cfg, provider, sessionService, classifier)
	defer wizardService.Close()
	draftService := services.NewDraftService(cfg, storageService, services.NewDescriptionService(generator, cfg), productService, sessionService)
	defer draftService.Close()

	limiters := middleware.NewRateLimiters()
	defer limiters.Stop()

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.Initialize(router.Services{
		Wizards:  wizardService,
		Sessions: sessionService,
		Products: productService,
		Drafts:   draftService,
		Settings: settingsService,
	}, limiters, cfg)

	// Prime the listing so /v1/status reflects the backend from the start
	if _, err := productService.List(ctx); err != nil {
		logrus.WithError(err).Warn("Initial product listing failed")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"identity": provider.Name(),
			"products": cfg.Products.Backend,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-quit:
	}
	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logrus.Info("Server exited")
	return nil
}

// productRepository picks the products backend. The returned *gorm.DB is
// nil unless the direct Postgres backend is used.
func productRepository(cfg *config.Config, clients services.ClientSource) (services.ProductRepository, *gorm.DB, error) {
	if cfg.Products.Backend != config.ProductBackendPostgres {
		return services.NewPostgrestProductRepository(clients, cfg.Products.ProductsTable), nil, nil
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db); err != nil {
			database.Close(db)
			return nil, nil, err
		}
	}

	return services.NewGormProductRepository(db), db, nil
}
