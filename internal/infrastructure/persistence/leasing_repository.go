package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/propledger/backend/internal/domain/leasing"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/propledger/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// readOnly runs a snapshot read in one read-only transaction
func readOnly(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn, &sql.TxOptions{ReadOnly: true})
}

// GormAgreementRepository reads lease agreements
type GormAgreementRepository struct {
	db *gorm.DB
}

// NewGormAgreementRepository creates a new GormAgreementRepository
func NewGormAgreementRepository(db *gorm.DB) *GormAgreementRepository {
	return &GormAgreementRepository{db: db}
}

// FindActiveOnFloor returns active agreements on a floor, oldest first
func (r *GormAgreementRepository) FindActiveOnFloor(ctx context.Context, floor int) ([]leasing.Agreement, error) {
	var rows []models.AgreementModel
	if err := readOnly(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Where("floor = ? AND status = ?", floor, leasing.AgreementStatusActive).
			Order("created_at ASC").
			Find(&rows).Error
	}); err != nil {
		return nil, err
	}
	out := make([]leasing.Agreement, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Save inserts or replaces an agreement. Agreements are owned by another
// system; this exists for seeding and tests.
func (r *GormAgreementRepository) Save(ctx context.Context, a *leasing.Agreement) error {
	return r.db.WithContext(ctx).Save(models.AgreementModelFromDomain(a)).Error
}

// GormUnitRepository reads units and writes back meter readings
type GormUnitRepository struct {
	db *gorm.DB
}

// NewGormUnitRepository creates a new GormUnitRepository
func NewGormUnitRepository(db *gorm.DB) *GormUnitRepository {
	return &GormUnitRepository{db: db}
}

// FindOccupied returns every occupied unit ordered by unit number
func (r *GormUnitRepository) FindOccupied(ctx context.Context) ([]leasing.Unit, error) {
	var rows []models.UnitModel
	if err := readOnly(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Where("status = ?", leasing.UnitStatusOccupied).
			Order("unit_number ASC").
			Find(&rows).Error
	}); err != nil {
		return nil, err
	}
	out := make([]leasing.Unit, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// FindByID finds a unit by its ID
func (r *GormUnitRepository) FindByID(ctx context.Context, id uuid.UUID) (*leasing.Unit, error) {
	var model models.UnitModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	unit := model.ToDomain()
	return &unit, nil
}

// Save inserts or replaces a unit
func (r *GormUnitRepository) Save(ctx context.Context, u *leasing.Unit) error {
	return r.db.WithContext(ctx).Save(models.UnitModelFromDomain(u)).Error
}

// UpdateMeterReadings shifts the current readings to previous and stores the
// new ones under a row lock. Unchanged readings are not written.
func (r *GormUnitRepository) UpdateMeterReadings(ctx context.Context, id uuid.UUID, water, electricity *decimal.Decimal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.UnitModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		unit := model.ToDomain()
		if !unit.RecordReadings(water, electricity) {
			return nil
		}

		return tx.Model(&models.UnitModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"previous_water_reading":       unit.Readings.PreviousWater,
				"current_water_reading":        unit.Readings.CurrentWater,
				"previous_electricity_reading": unit.Readings.PreviousElectricity,
				"current_electricity_reading":  unit.Readings.CurrentElectricity,
				"updated_at":                   unit.UpdatedAt,
			}).Error
	})
}

var (
	_ leasing.AgreementReader = (*GormAgreementRepository)(nil)
	_ leasing.UnitRepository  = (*GormUnitRepository)(nil)
)
