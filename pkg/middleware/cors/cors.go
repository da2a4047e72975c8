package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	allowHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	maxAge       = "600"
)

// New builds a CORS middleware from the configured origin allowlist. An
// empty allowlist permits every origin.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowed := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed = append(allowed, strings.TrimRight(origin, "/"))
	}

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if originAllowed(allowed, origin) {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		} else if len(allowed) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		}

		c.Header("Vary", "Origin")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", allowHeaders)
		c.Header("Access-Control-Allow-Methods", allowMethods)
		c.Header("Access-Control-Max-Age", maxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	for _, candidate := range allowed {
		if candidate == origin {
			return true
		}
	}
	return false
}
