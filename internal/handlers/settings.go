// internal/handlers/settings.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/marketflow/internal/i18n"
	"github.com/javajoker/marketflow/internal/services"
	"github.com/javajoker/marketflow/internal/utils"
)

type SettingsHandler struct {
	settingsService *services.SettingsService
}

func NewSettingsHandler(settingsService *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
	}
}

// GET /settings/connection
func (h *SettingsHandler) GetConnection(c *gin.Context) {
	utils.SuccessResponse(c, h.settingsService.Get(c.Request.Context()))
}

// PUT /settings/connection
func (h *SettingsHandler) UpdateConnection(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.ConnectionSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	view, err := h.settingsService.Update(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeySettingsSaved),
		"connection": view,
	})
}

// DELETE /settings/connection
func (h *SettingsHandler) ResetConnection(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	view, err := h.settingsService.Reset(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeySettingsReset),
		"connection": view,
	})
}
