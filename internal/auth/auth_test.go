package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-key"
	testIssuer = "school-report"
)

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue("teacher-7", RoleTeacher, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := Parse(tok.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "teacher-7", claims.Subject)
	assert.Equal(t, RoleTeacher, claims.Role)

	_, err = Parse(tok.AccessToken, "other-key", testIssuer)
	assert.Error(t, err)
	_, err = Parse(tok.AccessToken, testKey, "someone-else")
	assert.Error(t, err)
}

func TestIssueRejects(t *testing.T) {
	_, err := Issue("", RoleAdmin, testIssuer, testKey, time.Hour)
	assert.Error(t, err)
	_, err = Issue("u", "device", testIssuer, testKey, time.Hour)
	assert.Error(t, err)
	_, err = Issue("u", RoleAdmin, testIssuer, "", time.Hour)
	assert.Error(t, err)
}

func TestParseExpiredAndWrongAlg(t *testing.T) {
	tok, err := Issue("u", RoleAdmin, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(tok.AccessToken, testKey, testIssuer)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{Role: RoleAdmin}).SignedString([]byte(testKey))
	require.NoError(t, err)
	_, err = Parse(hs512, testKey, "")
	assert.Error(t, err)
}

func newRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", Bearer(testKey, testIssuer), RequireRole(roles...), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.Subject)
	})
	return r
}

func TestMiddleware(t *testing.T) {
	r := newRouter(RoleAdmin)
	admin, err := Issue("root", RoleAdmin, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	teacher, err := Issue("t1", RoleTeacher, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"wrong role", "Bearer " + teacher.AccessToken, http.StatusForbidden},
		{"ok", "bearer " + admin.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "root", w.Body.String())
			}
		})
	}
}

func TestRequireRoleWithoutBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireRole(RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
