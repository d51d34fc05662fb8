// internal/handlers/status.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/marketflow/internal/database"
	"github.com/javajoker/marketflow/internal/i18n"
	"github.com/javajoker/marketflow/internal/models"
	"github.com/javajoker/marketflow/internal/services"
	"github.com/javajoker/marketflow/internal/utils"
)

type StatusHandler struct {
	productService *services.ProductService
	version        string
}

func NewStatusHandler(productService *services.ProductService, version string) *StatusHandler {
	return &StatusHandler{
		productService: productService,
		version:        version,
	}
}

// GET /health
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	})
}

// GET /status
func (h *StatusHandler) GetStatus(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	status := h.productService.Status()

	data := gin.H{"backend": status}
	switch status.Category {
	case models.ErrorCategorySchemaMissing:
		data["hint"] = i18n.T(lang, i18n.KeyBackendSchemaMissing)
		data["setup_sql"] = database.SetupSQL
	case models.ErrorCategoryConfigInvalid:
		data["hint"] = i18n.T(lang, i18n.KeyBackendConfigInvalid)
	case models.ErrorCategoryGeneric:
		data["hint"] = i18n.T(lang, i18n.KeyBackendGeneric)
	}

	utils.SuccessResponse(c, data)
}

// GET /setup/schema
func (h *StatusHandler) GetSchema(c *gin.Context) {
	if c.Query("format") == "sql" {
		c.String(http.StatusOK, database.SetupSQL)
		return
	}

	utils.SuccessResponse(c, gin.H{"sql": database.SetupSQL})
}
