package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idRouter(seen *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		*seen = Value(c)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRequestIDEchoesInbound(t *testing.T) {
	var seen string
	r := idRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(Header, "gateway-abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "gateway-abc-123", seen)
	assert.Equal(t, "gateway-abc-123", w.Header().Get(Header))
}

func TestRequestIDMintedWhenAbsent(t *testing.T) {
	var seen string
	r := idRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(Header))
}
