package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	NewRouter(engine).Register(group).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/test/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("rent", "/rent")
		assert.Equal(t, "rent", g.Name())
		assert.Equal(t, "/rent", g.Prefix())
	})

	t.Run("applies middleware", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test").Use(func(c *gin.Context) {
			c.Header("X-Group", "test")
			c.Next()
		})
		g.DELETE("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := serve(engine, http.MethodDelete, "/api/v1/test/items/1")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "test", w.Header().Get("X-Group"))
	})

	t.Run("subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("parent", "/parent")
		g.Group("child", "/child").PATCH("/x", func(c *gin.Context) { c.String(http.StatusOK, "child") })
		g.RegisterRoutes(engine.Group("/api/v1"))

		assert.Equal(t, "child", serve(engine, http.MethodPatch, "/api/v1/parent/child/x").Body.String())
	})

	t.Run("trailing slash variants are served directly", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test").WithTrailingSlash()
		g.GET("", func(c *gin.Context) { c.String(http.StatusOK, "list") })
		g.POST("/:id/", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
		g.RegisterRoutes(engine.Group("/api/v1"))

		for _, path := range []string{"/api/v1/test", "/api/v1/test/"} {
			w := serve(engine, http.MethodGet, path)
			assert.Equal(t, http.StatusOK, w.Code, path)
			assert.Equal(t, "list", w.Body.String(), path)
		}
		for _, path := range []string{"/api/v1/test/7", "/api/v1/test/7/"} {
			w := serve(engine, http.MethodPost, path)
			assert.Equal(t, http.StatusOK, w.Code, path)
			assert.Equal(t, "7", w.Body.String(), path)
		}
	})
}

type stubLedgerEndpoints struct{}

func (stubLedgerEndpoints) Create(c *gin.Context)  { c.String(http.StatusCreated, "create") }
func (stubLedgerEndpoints) List(c *gin.Context)    { c.String(http.StatusOK, "list") }
func (stubLedgerEndpoints) Get(c *gin.Context)     { c.String(http.StatusOK, "get "+c.Param("id")) }
func (stubLedgerEndpoints) Patch(c *gin.Context)   { c.String(http.StatusOK, "patch "+c.Param("id")) }
func (stubLedgerEndpoints) Delete(c *gin.Context)  { c.String(http.StatusOK, "delete "+c.Param("id")) }
func (stubLedgerEndpoints) Export(c *gin.Context)  { c.String(http.StatusOK, "export "+c.Param("id")) }
func (stubLedgerEndpoints) Archive(c *gin.Context) { c.String(http.StatusOK, "archive "+c.Param("id")) }

func TestNewLedgerGroup(t *testing.T) {
	engine := gin.New()
	NewRouter(engine).Register(NewLedgerGroup("unit-bills", UnitBillsPrefix, stubLedgerEndpoints{})).Setup()

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodPost, "/api/v1/unit-bills/", "create"},
		{http.MethodPost, "/api/v1/unit-bills", "create"},
		{http.MethodGet, "/api/v1/unit-bills", "list"},
		{http.MethodGet, "/api/v1/unit-bills/abc/", "get abc"},
		{http.MethodPatch, "/api/v1/unit-bills/abc", "patch abc"},
		{http.MethodDelete, "/api/v1/unit-bills/abc/", "delete abc"},
		{http.MethodGet, "/api/v1/unit-bills/abc/export", "export abc"},
		{http.MethodGet, "/api/v1/unit-bills/archive/abc", "archive abc"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path)
			assert.Less(t, w.Code, 300)
			assert.Equal(t, tt.want, w.Body.String())
		})
	}
}
