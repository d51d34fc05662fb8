// internal/models/common.go
package models

// JSONB is a free-form metadata blob, used for BaaS user metadata.
type JSONB map[string]interface{}

// String returns the value under key when it is a non-empty string.
func (j JSONB) String(key string) string {
	if j == nil {
		return ""
	}
	if s, ok := j[key].(string); ok {
		return s
	}
	return ""
}

// Enums
type Role string

const (
	RoleGuest  Role = "GUEST"
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
)

// ParseRole maps a stored role string onto a Role. Unknown or empty values
// fall back to BUYER, matching how identities are restored from metadata.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleSeller:
		return RoleSeller
	case RoleGuest:
		return RoleGuest
	default:
		return RoleBuyer
	}
}

func (r Role) IsAuthenticated() bool {
	return r == RoleBuyer || r == RoleSeller
}

type AuthStep string

const (
	AuthStepCredentials AuthStep = "CREDENTIALS"
	AuthStepUsername    AuthStep = "USERNAME"
	AuthStepRoleCheck   AuthStep = "ROLE_CHECK"
	AuthStepAdminGate   AuthStep = "ADMIN_GATE"
	AuthStepComplete    AuthStep = "COMPLETE"
)

type AuthMode string

const (
	AuthModeSignup AuthMode = "signup"
	AuthModeLogin  AuthMode = "login"
)

type ErrorCategory string

const (
	ErrorCategoryNone          ErrorCategory = "NONE"
	ErrorCategoryValidation    ErrorCategory = "VALIDATION"
	ErrorCategorySchemaMissing ErrorCategory = "SCHEMA_MISSING"
	ErrorCategoryConfigInvalid ErrorCategory = "CONFIG_INVALID"
	ErrorCategoryGeneric       ErrorCategory = "GENERIC"
)

type FailureKind string

const (
	FailureKindTransport FailureKind = "transport"
	FailureKindBackend   FailureKind = "backend"
	FailureKindUnknown   FailureKind = "unknown"
)
