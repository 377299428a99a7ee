package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ledgerapp "github.com/propledger/backend/internal/application/ledger"
	"github.com/propledger/backend/internal/domain/ledger"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/propledger/backend/internal/infrastructure/export"
	"github.com/propledger/backend/internal/interfaces/http/dto"
)

// LedgerService is the application service behind one ledger resource
type LedgerService interface {
	Kind() ledger.Kind
	Create(ctx context.Context, input ledgerapp.CreateLedgerInput) (*ledgerapp.LedgerResponse, error)
	ApplyPatch(ctx context.Context, id uuid.UUID, input ledgerapp.PatchLedgerInput) (*ledgerapp.LedgerResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ledgerapp.LedgerResponse, error)
	Find(ctx context.Context, id uuid.UUID) (*ledger.PeriodLedger, error)
	List(ctx context.Context, filter ledgerapp.ListLedgerFilter) (*shared.Paginated[ledgerapp.LedgerResponse], error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// LedgerHandler serves one ledger kind: rent, services or unit bills
type LedgerHandler struct {
	BaseHandler
	service  LedgerService
	archives ledgerapp.ArchiveLocator
	now      func() time.Time
}

// NewLedgerHandler creates a handler. archives may be nil when archive
// storage is not configured; the archive route then answers 404.
func NewLedgerHandler(service LedgerService, archives ledgerapp.ArchiveLocator) *LedgerHandler {
	return &LedgerHandler{
		service:  service,
		archives: archives,
		now:      time.Now,
	}
}

// Create takes the source snapshot for a period and stores a new ledger.
// POST /<kind>/
func (h *LedgerHandler) Create(c *gin.Context) {
	var req ledgerapp.CreateLedgerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	resp, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List returns ledgers newest period first.
// GET /<kind>/?year=&month=&floor=&page=&page_size=
func (h *LedgerHandler) List(c *gin.Context) {
	var filter ledgerapp.ListLedgerFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.ValidationError(c, err)
		return
	}

	page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get returns one ledger.
// GET /<kind>/:id
func (h *LedgerHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Patch applies a partial update.
// PATCH /<kind>/:id
func (h *LedgerHandler) Patch(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req ledgerapp.PatchLedgerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	resp, err := h.service.ApplyPatch(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete removes a ledger.
// DELETE /<kind>/:id
func (h *LedgerHandler) Delete(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Export renders the ledger statement as a file download.
// GET /<kind>/:id/export?format=xlsx|pdf
func (h *LedgerHandler) Export(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		h.BadRequest(c, dto.ErrCodeUnsupported, "format must be xlsx or pdf")
		return
	}

	l, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	statement := export.NewStatement(l, h.now())
	data, err := export.Render(statement, format)
	if err != nil {
		h.HandleError(c, fmt.Errorf("failed to render %s statement: %w", format, err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, statement.Filename(format)))
	c.Data(http.StatusOK, format.ContentType(), data)
}

// Archive returns a signed download link for a deleted ledger.
// GET /<kind>/archive/:id
func (h *LedgerHandler) Archive(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	if h.archives == nil {
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "ledger archive is not configured")
		return
	}

	link, err := ledgerapp.LocateArchive(c.Request.Context(), h.archives, h.service.Kind(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, link)
}
