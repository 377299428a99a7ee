package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/propledger/backend/internal/domain/ledger"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/propledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ArchiveStore is the object storage used for deleted ledger documents
type ArchiveStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	ObjectExists(ctx context.Context, key string) (bool, error)
}

// ArchiveKey is the object key of a ledger's archived document
func ArchiveKey(kind ledger.Kind, id string) string {
	return fmt.Sprintf("ledgers/%s/%s.json", kind, id)
}

// LedgerArchiveHandler uploads the final document of a deleted ledger
type LedgerArchiveHandler struct {
	store  ArchiveStore
	logger *zap.Logger
}

// NewLedgerArchiveHandler creates a new archive handler
func NewLedgerArchiveHandler(store ArchiveStore, log *zap.Logger) *LedgerArchiveHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LedgerArchiveHandler{store: store, logger: log}
}

// EventTypes returns the event types this handler is interested in
func (h *LedgerArchiveHandler) EventTypes() []string {
	return []string{ledger.EventTypeLedgerDeleted}
}

// Handle uploads the document carried by a LedgerDeletedEvent. An existing
// archive object is left as is.
func (h *LedgerArchiveHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	deleted, ok := event.(*ledger.LedgerDeletedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			ledger.EventTypeLedgerDeleted, event.EventType())
	}

	key := ArchiveKey(deleted.Kind, deleted.AggregateID().String())
	log := logger.Enrich(ctx, h.logger).With(zap.String("object_key", key))

	exists, err := h.store.ObjectExists(ctx, key)
	if err != nil {
		log.Warn("failed to check archive object", zap.Error(err))
	} else if exists {
		log.Debug("ledger already archived")
		return nil
	}

	if err := h.store.Upload(ctx, key, deleted.Document, "application/json"); err != nil {
		log.Error("failed to archive deleted ledger", zap.Error(err))
		return fmt.Errorf("failed to archive ledger %s: %w", deleted.AggregateID(), err)
	}

	log.Info("deleted ledger archived", zap.String("period", deleted.Period))
	return nil
}

// ArchiveLocator resolves download links for archived documents
type ArchiveLocator interface {
	ObjectExists(ctx context.Context, key string) (bool, error)
	DownloadURL(ctx context.Context, key string) (string, time.Time, error)
}

// ArchiveLink is a time-limited download link for an archived ledger
type ArchiveLink struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LocateArchive returns a download link for a deleted ledger of the given
// kind, or a not found error when nothing was archived under its id
func LocateArchive(ctx context.Context, locator ArchiveLocator, kind ledger.Kind, id uuid.UUID) (*ArchiveLink, error) {
	key := ArchiveKey(kind, id.String())
	exists, err := locator.ObjectExists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check archive object: %w", err)
	}
	if !exists {
		return nil, shared.NewNotFoundError("archived "+kind.String()+" ledger", id.String())
	}
	url, expires, err := locator.DownloadURL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign archive url: %w", err)
	}
	return &ArchiveLink{Key: key, URL: url, ExpiresAt: expires}, nil
}
