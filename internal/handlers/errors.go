// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/marketflow/internal/database"
	"github.com/javajoker/marketflow/internal/i18n"
	"github.com/javajoker/marketflow/internal/models"
	"github.com/javajoker/marketflow/internal/services"
	"github.com/javajoker/marketflow/internal/utils"
)

// respondError maps service errors onto the response envelope.
func respondError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		utils.ValidationErrorResponse(c, utils.GetValidationErrors(validationErrs))
		return
	}

	var classified *services.ClassifiedError
	if errors.As(err, &classified) {
		details := gin.H{}
		if errors.Is(err, services.ErrRefreshFailed) {
			// the write went through, only the follow-up listing failed
			details["write_committed"] = true
		}
		respondClassified(c, classified.Classification, details)
		return
	}

	switch {
	case errors.Is(err, services.ErrWizardNotFound):
		utils.NotFoundResponse(c, "wizard")
	case errors.Is(err, services.ErrForbidden):
		utils.ForbiddenResponse(c, "")
	case errors.Is(err, services.ErrNotOwner):
		utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyProductNotOwner))
	case errors.Is(err, services.ErrConfirmationRequired):
		utils.ErrorResponse(c, http.StatusBadRequest, "CONFIRMATION_REQUIRED", i18n.T(lang, i18n.KeyProductConfirmRequired), nil)
	case errors.Is(err, services.ErrDraftInvalid):
		utils.UnprocessableResponse(c, i18n.T(lang, i18n.KeyDraftInvalid), nil)
	case errors.Is(err, services.ErrDescribeIncomplete):
		utils.UnprocessableResponse(c, i18n.T(lang, i18n.KeyDraftDescribeNeeds), nil)
	case errors.Is(err, services.ErrInvalidVideoURL), errors.Is(err, services.ErrDraftNegativePrice):
		utils.UnprocessableResponse(c, err.Error(), nil)
	case errors.Is(err, services.ErrImageNotFound):
		utils.NotFoundResponse(c, "draft.image")
	default:
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled service error")
		utils.InternalErrorResponse(c, "")
	}
}

// respondClassified picks the status for a classified backend failure. A
// missing schema ships the SQL that creates it.
func respondClassified(c *gin.Context, classification services.Classification, details gin.H) {
	lang := utils.GetLangFromContext(c)
	details["category"] = classification.Category
	details["message"] = classification.Message
	if classification.Code != "" {
		details["code"] = classification.Code
	}

	switch classification.Category {
	case models.ErrorCategorySchemaMissing:
		details["setup_sql"] = database.SetupSQL
		utils.ErrorResponse(c, http.StatusServiceUnavailable, string(classification.Category), i18n.T(lang, i18n.KeyBackendSchemaMissing), details)
	case models.ErrorCategoryConfigInvalid:
		utils.ErrorResponse(c, http.StatusBadGateway, string(classification.Category), i18n.T(lang, i18n.KeyBackendConfigInvalid), details)
	default:
		utils.ErrorResponse(c, http.StatusBadGateway, string(models.ErrorCategoryGeneric), classification.Message, details)
	}
}
