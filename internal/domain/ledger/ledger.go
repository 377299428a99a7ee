package ledger

import (
	"fmt"
	"time"

	"github.com/propledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PeriodLedger is the aggregate root for one billing period of one kind. It
// exclusively owns its line items.
type PeriodLedger struct {
	shared.BaseAggregateRoot
	Kind      Kind
	Period    PeriodKey
	LineItems LineItems
	Total     decimal.Decimal
	Approved  bool
}

// NewPeriodLedger creates a ledger from a snapshot. The snapshot is the only
// time line items are derived from source records.
func NewPeriodLedger(cfg KindConfig, key PeriodKey, snapshot Snapshot, approved bool) (*PeriodLedger, error) {
	if !cfg.Kind.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown ledger kind %q", cfg.Kind))
	}
	if err := key.Validate(cfg); err != nil {
		return nil, err
	}

	items := snapshot.Items.Clone()
	if items == nil {
		items = LineItems{}
	}
	if cfg.LineApproval {
		for id, item := range items {
			item.SetExt(ExtIsApproved, approved)
			items[id] = item
		}
	}

	l := &PeriodLedger{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Kind:              cfg.Kind,
		Period:            key,
		LineItems:         items,
		Approved:          approved,
	}
	l.Total = RecomputeTotal(l.LineItems)
	l.AddDomainEvent(NewLedgerCreatedEvent(l))
	return l, nil
}

// Patch is a partial update to a ledger
type Patch struct {
	Period    PeriodPatch
	Approved  *bool
	LineItems LineItemPatch
	// ExpectedVersion, when set, must equal the current version
	ExpectedVersion *int
}

// PatchOptions carry deployment policy into ApplyPatch
type PatchOptions struct {
	// LockOnApproval rejects line item and period edits on approved ledgers
	LockOnApproval bool
}

// PatchOutcome reports what a patch did
type PatchOutcome struct {
	Changed   bool
	Warnings  []Warning
	Reconcile ReconcileResult
}

// ApplyPatch merges a patch into the ledger and recomputes the total. A patch
// that changes nothing leaves every field, version included, untouched.
func (l *PeriodLedger) ApplyPatch(cfg KindConfig, patch Patch, opts PatchOptions) (PatchOutcome, error) {
	if cfg.Kind != l.Kind {
		return PatchOutcome{}, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("ledger %s is of kind %s, not %s", l.ID, l.Kind, cfg.Kind))
	}
	if patch.ExpectedVersion != nil && *patch.ExpectedVersion != l.Version {
		return PatchOutcome{}, shared.NewConflictError("ledger", *patch.ExpectedVersion, l.Version)
	}

	unapproving := patch.Approved != nil && !*patch.Approved
	if opts.LockOnApproval && l.Approved && !unapproving && (len(patch.LineItems) > 0 || !patch.Period.IsEmpty()) {
		return PatchOutcome{}, shared.ErrLedgerApproved
	}

	changed := false

	if !patch.Period.IsEmpty() {
		next, err := patch.Period.Apply(cfg, l.Period)
		if err != nil {
			return PatchOutcome{}, err
		}
		if next != l.Period {
			l.Period = next
			changed = true
		}
	}

	if patch.Approved != nil && *patch.Approved != l.Approved {
		l.Approved = *patch.Approved
		changed = true
	}

	result := NewReconciler(cfg).Reconcile(l.LineItems, patch.LineItems)
	if result.HasChanges() {
		l.LineItems = result.Items
		changed = true
	}

	total := RecomputeTotal(l.LineItems)
	if !total.Equal(l.Total) {
		changed = true
	}
	l.Total = total

	if changed {
		l.UpdatedAt = time.Now()
		l.IncrementVersion()
		if result.HasChanges() {
			l.AddDomainEvent(NewLedgerLineItemsUpdatedEvent(l, result))
		}
	}

	return PatchOutcome{Changed: changed, Warnings: result.Warnings, Reconcile: result}, nil
}

// MarkDeleted queues the deletion event; the repository performs the removal
func (l *PeriodLedger) MarkDeleted() {
	l.AddDomainEvent(NewLedgerDeletedEvent(l))
}

// Summary returns the read-time aggregates
func (l *PeriodLedger) Summary() Summary {
	return Summarize(l.Kind, l.LineItems)
}

// Document is the archival form of a ledger
type Document struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Floor     int       `json:"floor,omitempty"`
	Month     int       `json:"month"`
	Year      string    `json:"year"`
	Approved  bool      `json:"is_approved"`
	Total     string    `json:"total"`
	LineItems LineItems `json:"line_items"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document returns the archival form of l
func (l *PeriodLedger) Document() Document {
	return Document{
		ID:        l.ID.String(),
		Kind:      l.Kind,
		Floor:     l.Period.Floor,
		Month:     l.Period.Month,
		Year:      l.Period.Year,
		Approved:  l.Approved,
		Total:     l.Total.StringFixed(2),
		LineItems: l.LineItems,
		Version:   l.Version,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}
