package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/caldershaw/ragd/internal/pkg/jwt"
)

func TestJWTAuthValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("test-secret")
	token, err := jwt.GenerateToken("client-a", secret, time.Hour)
	require.NoError(t, err)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/chat", nil)
	c.Request.Header.Set("Authorization", "Bearer "+token)

	JWTAuth(secret)(c)
	require.False(t, c.IsAborted())
	require.Equal(t, "client-a", c.GetString(ContextClientIDKey))
}

func TestJWTAuthMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/chat", nil)

	JWTAuth([]byte("s"))(c)
	require.True(t, c.IsAborted())
}

func TestJWTAuthWrongScheme(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/chat", nil)
	c.Request.Header.Set("Authorization", "Basic abc")

	JWTAuth([]byte("s"))(c)
	require.True(t, c.IsAborted())
}

func TestJWTAuthWrongSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	token, err := jwt.GenerateToken("client-a", []byte("right"), time.Hour)
	require.NoError(t, err)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/chat", nil)
	c.Request.Header.Set("Authorization", "Bearer "+token)

	JWTAuth([]byte("wrong"))(c)
	require.True(t, c.IsAborted())
}

func TestJWTAuthExpiredToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("s")
	token, err := jwt.GenerateToken("client-a", secret, -time.Hour)
	require.NoError(t, err)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/chat", nil)
	c.Request.Header.Set("Authorization", "Bearer "+token)

	JWTAuth(secret)(c)
	require.True(t, c.IsAborted())
}
