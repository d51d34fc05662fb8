// internal/middleware/i18n.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/marketflow/internal/i18n"
	"github.com/javajoker/marketflow/internal/utils"
)

// I18nMiddleware stores the negotiated locale for handlers. A ?lang= query
// parameter overrides the Accept-Language header.
func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Accept-Language")
		if lang := c.Query("lang"); lang != "" {
			header = lang
		}

		c.Set(utils.ContextLang, i18n.Match(header))
		c.Next()
	}
}
