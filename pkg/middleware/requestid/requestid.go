package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the request id between services.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware propagates the caller's request id, minting a fresh one when
// the header is absent, and echoes it on the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(contextKey, id)
		c.Header(Header, id)

		c.Next()
	}
}

// Value returns the request id bound to the context, or "" when unset.
func Value(c *gin.Context) string {
	v, _ := c.Get(contextKey)
	id, _ := v.(string)
	return id
}
