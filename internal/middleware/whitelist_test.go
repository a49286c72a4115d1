package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(w *Whitelist) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(w.Middleware())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestWhitelistDisabledAllowsEverything(t *testing.T) {
	w := NewWhitelist(false, nil)
	r := newTestRouter(w)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWhitelistAllowsLoopbackAlways(t *testing.T) {
	w := NewWhitelist(true, nil)
	r := newTestRouter(w)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWhitelistBlocksUnlistedIP(t *testing.T) {
	w := NewWhitelist(true, []string{"203.0.113.9"})
	r := newTestRouter(w)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWhitelistAllowsListedIP(t *testing.T) {
	w := NewWhitelist(true, []string{"203.0.113.9"})
	r := newTestRouter(w)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWhitelistHonorsXForwardedFor(t *testing.T) {
	w := NewWhitelist(true, []string{"198.51.100.20"})
	r := newTestRouter(w)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.20, 10.0.0.1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
