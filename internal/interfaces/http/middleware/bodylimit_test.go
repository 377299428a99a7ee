package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(RequestID(), BodyLimit(64))
	echo := func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusBadRequest, "truncated")
			return
		}
		c.String(http.StatusOK, "%d", len(body))
	}
	engine.PATCH("/api/v1/rent/:id", echo)
	engine.GET("/api/v1/rent/:id", echo)

	small := `{"line_items":{"a":{"paid":10}}}`
	large := `{"line_items":{"a":{"note":"` + strings.Repeat("x", 128) + `"}}}`

	tests := []struct {
		name     string
		method   string
		body     string
		length   int64
		wantCode int
		wantBody string
	}{
		{"declared size within limit", http.MethodPatch, small, int64(len(small)), http.StatusOK, "32"},
		{"declared size over limit", http.MethodPatch, large, int64(len(large)), http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE"},
		{"streamed body over limit", http.MethodPatch, large, -1, http.StatusBadRequest, "truncated"},
		{"bodyless request", http.MethodGet, "", 0, http.StatusOK, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/rent/abc", strings.NewReader(tt.body))
			req.ContentLength = tt.length
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
