package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse-engage/backend/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(jwtService *auth.JWTService, roles ...string) *gin.Engine {
	router := gin.New()
	group := router.Group("/", JWT(jwtService))
	if len(roles) > 0 {
		group.Use(RequireRole(roles...))
	}
	group.GET("/me", func(c *gin.Context) {
		userID := c.MustGet(ContextUserID).(uuid.UUID)
		c.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "role": c.GetString(ContextUserRole)})
	})
	return router
}

func TestJWTMiddlewareAllowsValidToken(t *testing.T) {
	svc := auth.NewJWTService("test-secret", 24)
	userID := uuid.New()
	token, err := svc.Generate(userID, "alex@example.com", "participant")
	require.NoError(t, err)

	router := protectedRouter(svc)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), userID.String())
}

func TestJWTMiddlewareRejectsMissingHeader(t *testing.T) {
	router := protectedRouter(auth.NewJWTService("test-secret", 24))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddlewareRejectsMalformedHeader(t *testing.T) {
	router := protectedRouter(auth.NewJWTService("test-secret", 24))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddlewareRejectsForgedToken(t *testing.T) {
	forger := auth.NewJWTService("other-secret", 24)
	token, err := forger.Generate(uuid.New(), "alex@example.com", "admin")
	require.NoError(t, err)

	router := protectedRouter(auth.NewJWTService("test-secret", 24))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleForbidsParticipant(t *testing.T) {
	svc := auth.NewJWTService("test-secret", 24)
	token, err := svc.Generate(uuid.New(), "alex@example.com", "participant")
	require.NoError(t, err)

	router := protectedRouter(svc, "admin")
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleAllowsAdmin(t *testing.T) {
	svc := auth.NewJWTService("test-secret", 24)
	token, err := svc.Generate(uuid.New(), "admin@example.com", "admin")
	require.NoError(t, err)

	router := protectedRouter(svc, "admin")
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"admin"`)
}
