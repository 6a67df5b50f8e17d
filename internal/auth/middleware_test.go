package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(v *Verifier) *gin.Engine {
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), NewHandler(), Middleware(v))
	return r
}

func TestMeWithValidToken(t *testing.T) {
	v := NewVerifier("test-secret", "investor-portal")
	token, err := v.Issue("user-1", "sess-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newRouter(v).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var id Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &id))
	assert.Equal(t, Identity{UserID: "user-1", SessionID: "sess-1"}, id)
}

func TestAccessTokenQueryParam(t *testing.T) {
	v := NewVerifier("test-secret", "")
	token, err := v.Issue("user-2", "sess-2", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me?access_token="+token, nil)
	rec := httptest.NewRecorder()
	newRouter(v).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMeRejectsMissingAndForgedTokens(t *testing.T) {
	v := NewVerifier("test-secret", "investor-portal")
	forged, err := NewVerifier("other-secret", "investor-portal").Issue("user-1", "sess-1", time.Hour)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing": "",
		"forged":  "Bearer " + forged,
		"garbage": "Bearer not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			newRouter(v).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestVerifySessionFallbacks(t *testing.T) {
	v := NewVerifier("test-secret", "")
	sign := func(claims Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return s
	}

	id, err := v.Verify(sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ID: "jti-9"}}))
	require.NoError(t, err)
	assert.Equal(t, "jti-9", id.SessionID)

	id, err = v.Verify(sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}))
	require.NoError(t, err)
	assert.Equal(t, "u", id.SessionID)

	_, err = v.Verify(sign(Claims{SessionID: "s"}))
	assert.ErrorContains(t, err, "missing subject")
}

func TestPingIsPublic(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(NewVerifier("s", "")).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
