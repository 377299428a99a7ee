package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRouteResource(t *testing.T) {
	tests := []struct {
		route string
		want  string
	}{
		{"/api/v1/rent", "rent"},
		{"/api/v1/unit-bills/:id/export", "unit-bills"},
		{"/api/v2/services/archive/:id", "services"},
		{"/health", "health"},
		{"/api/v1/:id", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.want, routeResource(tt.route))
		})
	}
}

func TestIsVersionSegment(t *testing.T) {
	assert.True(t, isVersionSegment("v1"))
	assert.True(t, isVersionSegment("V12"))
	assert.False(t, isVersionSegment("v"))
	assert.False(t, isVersionSegment("vx"))
	assert.False(t, isVersionSegment("rent"))
}

func labelsSeenBy(t *testing.T, cfg ProfilingConfig, method, path string) map[string]string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	seen := map[string]string{}
	router := gin.New()
	router.Use(ProfilingWithConfig(cfg))
	handler := func(c *gin.Context) {
		pprof.ForLabels(c.Request.Context(), func(k, v string) bool {
			seen[k] = v
			return true
		})
		c.Status(http.StatusOK)
	}
	router.GET("/api/v1/services/:id", handler)
	router.GET("/health", handler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	return seen
}

func TestProfilingWithConfig(t *testing.T) {
	t.Run("labels ledger routes", func(t *testing.T) {
		seen := labelsSeenBy(t, DefaultProfilingConfig(), http.MethodGet, "/api/v1/services/42")
		assert.Equal(t, "GET", seen[ProfilingLabelMethod])
		assert.Equal(t, "/api/v1/services/:id", seen[ProfilingLabelRoute])
		assert.Equal(t, "services", seen[ProfilingLabelResource])
	})

	t.Run("skips health", func(t *testing.T) {
		assert.Empty(t, labelsSeenBy(t, DefaultProfilingConfig(), http.MethodGet, "/health"))
	})

	t.Run("disabled", func(t *testing.T) {
		assert.Empty(t, labelsSeenBy(t, ProfilingConfig{}, http.MethodGet, "/api/v1/services/42"))
	})
}

func TestProfilingLabels_KeepsParentContext(t *testing.T) {
	type key struct{}
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), key{}, "kept"))
		c.Next()
	}, Profiling())
	router.GET("/api/v1/rent", func(c *gin.Context) {
		c.String(http.StatusOK, c.Request.Context().Value(key{}).(string))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rent", nil))
	assert.Equal(t, "kept", w.Body.String())
}
