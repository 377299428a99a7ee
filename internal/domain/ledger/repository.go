package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Filter selects ledgers of one kind for listing
type Filter struct {
	Kind     Kind
	Year     string
	Month    int
	Floor    int
	Page     int
	PageSize int
}

// Repository persists period ledgers
type Repository interface {
	// FindByID returns shared.ErrNotFound when no ledger of the kind has the id
	FindByID(ctx context.Context, kind Kind, id uuid.UUID) (*PeriodLedger, error)
	// FindAll lists ledgers newest period first
	FindAll(ctx context.Context, filter Filter) ([]PeriodLedger, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	ExistsForPeriod(ctx context.Context, kind Kind, key PeriodKey) (bool, error)
	// Save inserts a new ledger
	Save(ctx context.Context, l *PeriodLedger) error
	// SaveWithLock updates a ledger whose stored version is l.Version-1 and
	// returns a conflict error otherwise
	SaveWithLock(ctx context.Context, l *PeriodLedger) error
	// Delete removes a ledger, returning shared.ErrNotFound if absent
	Delete(ctx context.Context, kind Kind, id uuid.UUID) error
}
