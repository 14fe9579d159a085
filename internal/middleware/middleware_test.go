package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	return r
}

func serve(r http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := newRouter(RequestID())

	w := serve(r, "/test", nil)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)

	w = serve(r, "/test", map[string]string{"X-Request-ID": "custom-request-id"})
	assert.Equal(t, "custom-request-id", w.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	r := newRouter(RequestID(), Recovery())
	w := serve(r, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "panic_recovered")
}

func TestRateLimiter(t *testing.T) {
	r := newRouter(RateLimiter(1, 2))
	assert.Equal(t, http.StatusOK, serve(r, "/test", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, "/test", nil).Code)

	w := serve(r, "/test", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	open := newRouter(RateLimiter(0, 0))
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, serve(open, "/test", nil).Code)
	}
}

func TestBearerAuth(t *testing.T) {
	r := newRouter(RequestLogger(), BearerAuth(func(token string) (string, error) {
		if token == "good" {
			return "u1", nil
		}
		return "", errors.New("token expired")
	}))

	assert.Equal(t, http.StatusUnauthorized, serve(r, "/test", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/test", map[string]string{"Authorization": "Bearer bad"}).Code)

	w := serve(r, "/test", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}
