package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolreport/internal/auth"
)

func TestAllowRefill(t *testing.T) {
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	l := NewTokenBucket(2, 60)
	l.now = func() time.Time { return now }

	ok, _ := l.allow("a")
	assert.True(t, ok)
	ok, _ = l.allow("a")
	assert.True(t, ok)
	ok, wait := l.allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	ok, _ = l.allow("b")
	assert.True(t, ok, "keys are independent")

	now = now.Add(1500 * time.Millisecond)
	ok, _ = l.allow("a")
	assert.True(t, ok)
	ok, _ = l.allow("a")
	assert.False(t, ok)

	now = now.Add(time.Hour)
	ok, _ = l.allow("a")
	assert.True(t, ok)
	ok, _ = l.allow("a")
	assert.True(t, ok)
	ok, _ = l.allow("a")
	assert.False(t, ok, "refill is capped at capacity")
}

func TestMiddlewareKeysBySubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewTokenBucket(1, 1)
	fixed := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	r := gin.New()
	r.GET("/x", auth.Bearer("k", ""), l.GinMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(sub string) *httptest.ResponseRecorder {
		tok, err := auth.Issue(sub, auth.RoleTeacher, "", "k", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("t1").Code)
	w := do("t1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do("t2").Code, "same IP, different subject")
}
