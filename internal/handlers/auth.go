// internal/handlers/auth.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/marketflow/internal/i18n"
	"github.com/javajoker/marketflow/internal/middleware"
	"github.com/javajoker/marketflow/internal/models"
	"github.com/javajoker/marketflow/internal/services"
	"github.com/javajoker/marketflow/internal/utils"
)

type StartWizardRequest struct {
	Mode string `json:"mode" validate:"omitempty,oneof=signup login"`
}

type SetModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=signup login"`
}

// CredentialsRequest is checked by the wizard itself so that the error ends
// up in the wizard view.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UsernameRequest struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar" validate:"omitempty,image_ref"`
}

type RoleRequest struct {
	Seller *bool `json:"seller" validate:"required"`
}

type AdminKeyRequest struct {
	Key string `json:"key"`
}

type AuthHandler struct {
	wizardService  *services.WizardService
	sessionService *services.SessionService
}

func NewAuthHandler(wizardService *services.WizardService, sessionService *services.SessionService) *AuthHandler {
	return &AuthHandler{
		wizardService:  wizardService,
		sessionService: sessionService,
	}
}

// POST /wizard
func (h *AuthHandler) StartWizard(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req StartWizardRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
			return
		}
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	mode := models.AuthModeSignup
	if req.Mode != "" {
		mode = models.AuthMode(req.Mode)
	}

	utils.CreatedResponse(c, gin.H{
		"wizard": h.wizardService.Start(mode),
	})
}

// GET /wizard/:id
func (h *AuthHandler) GetWizard(c *gin.Context) {
	view, err := h.wizardService.View(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"wizard": view})
}

// PUT /wizard/:id/mode
func (h *AuthHandler) SetMode(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req SetModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.wizardService.SetMode(c.Param("id"), models.AuthMode(req.Mode))
	h.respond(c, result, err)
}

// POST /wizard/:id/credentials
func (h *AuthHandler) SubmitCredentials(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	result, err := h.wizardService.SubmitCredentials(c.Request.Context(), c.Param("id"), req.Email, req.Password)
	h.respond(c, result, err)
}

// POST /wizard/:id/username
func (h *AuthHandler) SubmitUsername(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req UsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.wizardService.SubmitUsername(c.Param("id"), req.Username, req.Avatar)
	h.respond(c, result, err)
}

// POST /wizard/:id/role
func (h *AuthHandler) ChooseRole(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.wizardService.ChooseRole(c.Request.Context(), c.Param("id"), *req.Seller)
	h.respond(c, result, err)
}

// POST /wizard/:id/admin-key
func (h *AuthHandler) SubmitAdminKey(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req AdminKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	result, err := h.wizardService.SubmitAdminKey(c.Request.Context(), c.Param("id"), req.Key)
	h.respond(c, result, err)
}

// POST /wizard/:id/skip-admin
func (h *AuthHandler) SkipAdminGate(c *gin.Context) {
	result, err := h.wizardService.SkipAdminGate(c.Request.Context(), c.Param("id"))
	h.respond(c, result, err)
}

// POST /wizard/:id/back
func (h *AuthHandler) Back(c *gin.Context) {
	result, err := h.wizardService.Back(c.Param("id"))
	h.respond(c, result, err)
}

// GET /session
func (h *AuthHandler) GetSession(c *gin.Context) {
	token, _ := middleware.BearerToken(c)
	utils.SuccessResponse(c, h.sessionService.Restore(c.Request.Context(), token))
}

// POST /session/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	sessionID, ok := utils.GetSessionIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	if err := h.sessionService.Logout(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAuthLogoutSuccess),
	})
}

// respond writes the outcome of a wizard action. Rejected actions carry the
// wizard view so the client can render the recorded error in place.
func (h *AuthHandler) respond(c *gin.Context, result *services.WizardResult, err error) {
	lang := utils.GetLangFromContext(c)

	var stepErr *services.WizardStepError
	if errors.As(err, &stepErr) {
		details := gin.H{
			"wizard":   stepErr.View,
			"category": stepErr.Category,
		}
		switch stepErr.Category {
		case models.ErrorCategoryValidation:
			utils.UnprocessableResponse(c, stepErr.Error(), details)
		case models.ErrorCategorySchemaMissing:
			utils.ErrorResponse(c, http.StatusServiceUnavailable, string(stepErr.Category), i18n.T(lang, i18n.KeyBackendSchemaMissing), details)
		case models.ErrorCategoryConfigInvalid:
			utils.ErrorResponse(c, http.StatusBadGateway, string(stepErr.Category), i18n.T(lang, i18n.KeyBackendConfigInvalid), details)
		default:
			utils.ErrorResponse(c, http.StatusUnauthorized, "AUTH_FAILED", stepErr.Error(), details)
		}
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{"wizard": result.Wizard}
	if result.Session != nil {
		data["identity"] = result.Session.Identity
		data["token"] = result.Session.Token
		data["token_type"] = result.Session.TokenType
		data["expires_in"] = result.Session.ExpiresIn
	}
	utils.SuccessResponse(c, data)
}
