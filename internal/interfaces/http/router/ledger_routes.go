package router

import "github.com/gin-gonic/gin"

// LedgerEndpoints are the handlers of one ledger resource
type LedgerEndpoints interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	Patch(c *gin.Context)
	Delete(c *gin.Context)
	Export(c *gin.Context)
	Archive(c *gin.Context)
}

// Ledger resource prefixes under /api/v1
const (
	RentPrefix      = "/rent"
	ServicesPrefix  = "/services"
	UnitBillsPrefix = "/unit-bills"
)

// NewLedgerGroup lays out the routes of one ledger resource. Each route
// answers with and without a trailing slash.
func NewLedgerGroup(name, prefix string, h LedgerEndpoints) *DomainGroup {
	g := NewDomainGroup(name, prefix).WithTrailingSlash()
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/archive/:id", h.Archive)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Patch)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/export", h.Export)
	return g
}
