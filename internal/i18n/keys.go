// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired         = "auth.required"
	KeyAuthInvalidToken     = "auth.invalid_token"
	KeyAuthLogoutSuccess    = "auth.logout_success"
	KeyAuthSellerRequired   = "auth.seller_required"
	KeyAuthAdminKeyRequired = "auth.admin_key_required"

	// Wizard
	KeyWizardNotFound = "wizard.not_found"

	// Products
	KeyProductDeleted         = "product.deleted"
	KeyProductPublished       = "product.published"
	KeyProductConfirmRequired = "product.confirm_required"
	KeyProductNotOwner        = "product.not_owner"

	// Drafts
	KeyDraftInvalid       = "draft.invalid"
	KeyDraftImageNotFound = "draft.image_not_found"
	KeyDraftDescribeNeeds = "draft.describe_needs_title_price"
	KeyDraftCancelled     = "draft.cancelled"

	// Backend states
	KeyBackendSchemaMissing = "backend.schema_missing"
	KeyBackendConfigInvalid = "backend.config_invalid"
	KeyBackendGeneric       = "backend.generic"

	// Settings
	KeySettingsSaved = "settings.saved"
	KeySettingsReset = "settings.reset"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// Rate limiting
	KeyRateLimitExceeded = "rate_limit.exceeded"
)
