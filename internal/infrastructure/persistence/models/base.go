package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/propledger/backend/internal/domain/shared"
)

// BaseModel carries the identity and timestamps of every row
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Entity returns the domain form of the base fields
func (m BaseModel) Entity() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func baseFrom(e shared.BaseEntity) BaseModel {
	return BaseModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

// AggregateModel adds the optimistic locking version
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// Root returns the domain form of the aggregate fields
func (m AggregateModel) Root() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{BaseEntity: m.Entity(), Version: m.Version}
}

func aggregateFrom(a shared.BaseAggregateRoot) AggregateModel {
	return AggregateModel{BaseModel: baseFrom(a.BaseEntity), Version: a.Version}
}
