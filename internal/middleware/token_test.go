package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"catalog-admin-service/internal/clients"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(DevelopmentAuthMiddleware(), ForwardToken())
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"token": clients.TokenFromContext(c.Request.Context()),
			"user":  c.GetString("user_id"),
		})
	})
	return router
}

func TestForwardToken_PutsTokenOnContext(t *testing.T) {
	router := setupRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer abc123")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"abc123","user":"00000000-0000-0000-0000-000000000001"}`, w.Body.String())
}

func TestForwardToken_MissingToken(t *testing.T) {
	router := setupRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_REQUIRED")
}

func TestDevelopmentAuthMiddleware_UsesHeader(t *testing.T) {
	router := setupRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "bearer t")
	req.Header.Set("X-User-ID", "staff-7")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"staff-7"`)
}
