package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func bodyLimitRouter(maxBytes int64) *gin.Engine {
	router := gin.New()
	router.Use(BodyLimit(maxBytes))
	router.POST("/items", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "read failed")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	return router
}

func TestBodyLimit(t *testing.T) {
	t.Run("accepts a body within the limit", func(t *testing.T) {
		router := bodyLimitRouter(64)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/items", strings.NewReader(`{"name":"x"}`)))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects an oversized declared body with the error envelope", func(t *testing.T) {
		router := bodyLimitRouter(8)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/items", strings.NewReader(strings.Repeat("a", 64))))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), `"success":false`)
		assert.Contains(t, w.Body.String(), "REQUEST_TOO_LARGE")
	})

	t.Run("caps a chunked body without a declared length", func(t *testing.T) {
		router := bodyLimitRouter(8)
		req := httptest.NewRequest("POST", "/items", strings.NewReader(strings.Repeat("a", 64)))
		req.ContentLength = -1

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("non-positive limit disables the middleware", func(t *testing.T) {
		router := bodyLimitRouter(0)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/items", strings.NewReader(strings.Repeat("a", 1024))))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
