// internal/handlers/draft.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/marketflow/internal/i18n"
	"github.com/javajoker/marketflow/internal/services"
	"github.com/javajoker/marketflow/internal/utils"
)

type ImageURLsRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,dive,required"`
}

type DraftHandler struct {
	draftService *services.DraftService
}

func NewDraftHandler(draftService *services.DraftService) *DraftHandler {
	return &DraftHandler{
		draftService: draftService,
	}
}

// GET /drafts/current
func (h *DraftHandler) GetDraft(c *gin.Context) {
	sessionID, ok := utils.GetSessionIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	utils.SuccessResponse(c, h.draftService.Get(sessionID))
}

// PUT /drafts/current
func (h *DraftHandler) UpdateDraft(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	sessionID, ok := utils.GetSessionIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.DraftUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	view, err := h.draftService.Update(sessionID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, view)
}

// POST /drafts/current/images
func (h *DraftHandler) UploadImages(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	sessionID, ok := utils.GetSessionIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "images"), err.Error())
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "images"), nil)
		return
	}

	view, err := h.draftService.AddImages(c.Request.Context(), sessionID, files)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, view)
}

// POST /drafts/current/image-urls
func (h *DraftHandler) AddImageURLs(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	sessionID, ok := utils.GetSessionIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req ImageURLsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	view, err := h.draftService.AddImageURLs(sessionID, req.URLs)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, view)
}

// DELETE /drafts/current/images/:index
func (h *DraftHandler) RemoveImage(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	sessionID, ok := utils.GetSessionIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "index"), nil)
		return
	}

	view, err := h.draftService.RemoveImage(c.Request.Context(), sessionID, index)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, view)
}

// POST /drafts/current/describe
func (h *DraftHandler) Describe(c *gin.Context) {
	sessionID, ok := utils.GetSessionIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	view, err := h.draftService.Describe(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, view)
}

// POST /drafts/current/publish
func (h *DraftHandler) Publish(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	sessionID, ok := utils.GetSessionIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	identity, _ := utils.GetIdentityFromContext(c)

	products, err := h.draftService.Publish(c.Request.Context(), sessionID, identity)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyProductPublished),
		"products": products,
		"draft":    h.draftService.Get(sessionID),
	})
}

// DELETE /drafts/current
func (h *DraftHandler) CancelDraft(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	sessionID, ok := utils.GetSessionIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyDraftCancelled),
		"draft":   h.draftService.Cancel(c.Request.Context(), sessionID),
	})
}
