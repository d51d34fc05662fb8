// internal/middleware/auth.go
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/marketflow/internal/i18n"
	"github.com/javajoker/marketflow/internal/services"
	"github.com/javajoker/marketflow/internal/utils"
)

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthRequired resolves the session behind the bearer token and puts its
// identity into the context.
func AuthRequired(sessions *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		token, ok := BearerToken(c)
		if !ok {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		claims, err := utils.ValidateSessionToken(token)
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		record, err := sessions.Lookup(c.Request.Context(), claims.Subject)
		if err != nil {
			if !errors.Is(err, services.ErrSessionNotFound) {
				logrus.WithError(err).WithField("session", claims.Subject).Error("Session lookup failed")
			}
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		// Set session info in context
		c.Set(utils.ContextSessionID, record.ID)
		c.Set(utils.ContextIdentity, record.Identity)
		c.Next()
	}
}

// SellerRequired must run after AuthRequired.
func SellerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := utils.GetIdentityFromContext(c)
		if !ok || !identity.CanSell() {
			utils.ForbiddenResponse(c, "")
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalAuth sets the session info when a valid token is present and
// otherwise lets the request through as a guest.
func OptionalAuth(sessions *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := utils.ValidateSessionToken(token)
		if err != nil {
			c.Next()
			return
		}

		if record, err := sessions.Lookup(c.Request.Context(), claims.Subject); err == nil {
			c.Set(utils.ContextSessionID, record.ID)
			c.Set(utils.ContextIdentity, record.Identity)
		}
		c.Next()
	}
}

// AdminKeyRequired guards deployment-wide changes with the X-Admin-Key
// header. An unset admin key locks the route.
func AdminKeyRequired(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Admin-Key")
		if adminKey == "" || key == "" || !utils.SecureCompare(key, adminKey) {
			lang := utils.GetLangFromContext(c)
			utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyAuthAdminKeyRequired))
			c.Abort()
			return
		}
		c.Next()
	}
}
