package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/propledger/backend/internal/domain/ledger"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/propledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormLedgerRepository implements ledger.Repository using GORM. All kinds
// share the period_ledgers table and every query is scoped by kind.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// FindByID finds a ledger of the given kind by its ID
func (r *GormLedgerRepository) FindByID(ctx context.Context, kind ledger.Kind, id uuid.UUID) (*ledger.PeriodLedger, error) {
	var model models.PeriodLedgerModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND kind = ?", id, kind).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists ledgers ordered by year and month descending, then floor
func (r *GormLedgerRepository) FindAll(ctx context.Context, filter ledger.Filter) ([]ledger.PeriodLedger, error) {
	var rows []models.PeriodLedgerModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.PeriodLedgerModel{}), filter).
		Order("year DESC").
		Order("month DESC").
		Order("floor ASC").
		Order("created_at ASC")

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]ledger.PeriodLedger, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Count counts ledgers matching the filter, ignoring paging
func (r *GormLedgerRepository) Count(ctx context.Context, filter ledger.Filter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.PeriodLedgerModel{}), filter).
		Count(&count).Error
	return count, err
}

// ExistsForPeriod reports whether a ledger of the kind already covers the key
func (r *GormLedgerRepository) ExistsForPeriod(ctx context.Context, kind ledger.Kind, key ledger.PeriodKey) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PeriodLedgerModel{}).
		Where("kind = ? AND floor = ? AND month = ? AND year = ?", kind, key.Floor, key.Month, key.Year).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save inserts a new ledger
func (r *GormLedgerRepository) Save(ctx context.Context, l *ledger.PeriodLedger) error {
	model := models.PeriodLedgerModelFromDomain(l)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.CodeAlreadyExists,
				"a "+string(l.Kind)+" ledger already exists for "+l.Period.String())
		}
		return err
	}
	return nil
}

// SaveWithLock updates every column of a ledger whose stored version is
// l.Version-1
func (r *GormLedgerRepository) SaveWithLock(ctx context.Context, l *ledger.PeriodLedger) error {
	model := models.PeriodLedgerModelFromDomain(l)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND kind = ? AND version = ?", l.ID, l.Kind, l.Version-1).
		Select("*").
		Omit("id", "created_at").
		Updates(model)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.CodeAlreadyExists,
				"a "+string(l.Kind)+" ledger already exists for "+l.Period.String())
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeOptimisticLock, "The ledger has been modified by another request")
	}
	return nil
}

// Delete removes a ledger of the given kind
func (r *GormLedgerRepository) Delete(ctx context.Context, kind ledger.Kind, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND kind = ?", id, kind).
		Delete(&models.PeriodLedgerModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormLedgerRepository) applyFilter(query *gorm.DB, filter ledger.Filter) *gorm.DB {
	query = query.Where("kind = ?", filter.Kind)
	if filter.Year != "" {
		query = query.Where("year = ?", filter.Year)
	}
	if filter.Month > 0 {
		query = query.Where("month = ?", filter.Month)
	}
	if filter.Floor > 0 {
		query = query.Where("floor = ?", filter.Floor)
	}
	return query
}

var _ ledger.Repository = (*GormLedgerRepository)(nil)
