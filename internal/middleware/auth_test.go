package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduadvise-backend/pkg/jwt"
)

type stubRevocation struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocation) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.revoked[tokenID], nil
}

func authTestRouter(t *testing.T, revocation RevocationChecker) (*gin.Engine, *jwt.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := jwt.NewJWTManager("test-secret", time.Minute, time.Hour)
	router := gin.New()
	router.GET("/protected", Auth(manager, revocation), func(c *gin.Context) {
		userID := c.MustGet("user_id").(uuid.UUID)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return router, manager
}

func TestAuthAcceptsBearerHeader(t *testing.T) {
	router, manager := authTestRouter(t, nil)

	token, err := manager.GenerateAccessToken(uuid.New(), "mei@example.com", "student")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthAcceptsQueryToken(t *testing.T) {
	router, manager := authTestRouter(t, nil)

	token, err := manager.GenerateAccessToken(uuid.New(), "mei@example.com", "student")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	router, _ := authTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	router, _ := authTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsWrongSignature(t *testing.T) {
	router, _ := authTestRouter(t, nil)

	other := jwt.NewJWTManager("different-secret", time.Minute, time.Hour)
	token, err := other.GenerateAccessToken(uuid.New(), "mei@example.com", "student")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsRevokedToken(t *testing.T) {
	revocation := &stubRevocation{revoked: map[string]bool{}}
	router, manager := authTestRouter(t, revocation)

	token, err := manager.GenerateAccessToken(uuid.New(), "mei@example.com", "student")
	require.NoError(t, err)

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	revocation.revoked[claims.ID] = true

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthFailsOpenOnRevocationError(t *testing.T) {
	revocation := &stubRevocation{err: assert.AnError}
	router, manager := authTestRouter(t, revocation)

	token, err := manager.GenerateAccessToken(uuid.New(), "mei@example.com", "student")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireUserType(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/counselors-only",
		func(c *gin.Context) { c.Set("user_type", "student") },
		RequireUserType("counselor"),
		func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/students-only",
		func(c *gin.Context) { c.Set("user_type", "student") },
		RequireUserType("student", "counselor"),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/counselors-only", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/students-only", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
