package integration

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	ledgerapp "github.com/propledger/backend/internal/application/ledger"
	"github.com/propledger/backend/internal/domain/leasing"
	"github.com/propledger/backend/internal/domain/ledger"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/propledger/backend/internal/infrastructure/cache"
	"github.com/propledger/backend/internal/infrastructure/config"
	"github.com/propledger/backend/internal/infrastructure/event"
	"github.com/propledger/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestRentLedger_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	ctx := context.Background()

	agreements := persistence.NewGormAgreementRepository(testDB.DB)
	for _, a := range []leasing.Agreement{
		{BaseEntity: shared.NewBaseEntity(), CustomerName: "Sara", Status: leasing.AgreementStatusActive, Floor: 2, Shops: []string{"A1"}, Rent: decimal.NewFromInt(500)},
		{BaseEntity: shared.NewBaseEntity(), CustomerName: "Omid", Status: leasing.AgreementStatusActive, Floor: 2, Shops: []string{"A2", "A3"}, Rent: decimal.NewFromInt(700)},
		{BaseEntity: shared.NewBaseEntity(), CustomerName: "Left", Status: leasing.AgreementStatusInactive, Floor: 2, Rent: decimal.NewFromInt(900)},
		{BaseEntity: shared.NewBaseEntity(), CustomerName: "Other floor", Status: leasing.AgreementStatusActive, Floor: 3, Rent: decimal.NewFromInt(100)},
	} {
		require.NoError(t, agreements.Save(ctx, &a))
	}

	cfg := ledger.RentConfig()
	svc := ledgerapp.NewService(cfg, ledgerapp.Dependencies{
		Repo:   persistence.NewGormLedgerRepository(testDB.DB),
		Source: ledger.RentSource(agreements),
		Logger: zap.NewNop(),
	}, ledgerapp.Options{})

	created, err := svc.Create(ctx, ledgerapp.CreateLedgerInput{PeriodInput: ledgerapp.PeriodInput{
		Floor: raw(`"2"`), Month: raw("6"), Year: raw(`"1403"`),
	}})
	require.NoError(t, err)
	assert.Len(t, created.LineItems, 2)
	assert.True(t, created.Total.Decimal().Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, 1, created.Version)

	var itemID string
	for id := range created.LineItems {
		itemID = id
		break
	}

	t.Run("patch with current version", func(t *testing.T) {
		version := created.Version
		resp, err := svc.ApplyPatch(ctx, created.ID, ledgerapp.PatchLedgerInput{
			Version:   &version,
			LineItems: ledger.LineItemPatch{itemID: {"paid": raw(`"100"`)}},
		})
		require.NoError(t, err)
		assert.Equal(t, version+1, resp.Version)
		assert.True(t, resp.TotalPaid.Decimal().Equal(decimal.NewFromInt(100)))
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		stale := created.Version
		_, err := svc.ApplyPatch(ctx, created.ID, ledgerapp.PatchLedgerInput{
			Version:   &stale,
			LineItems: ledger.LineItemPatch{itemID: {"paid": raw("200")}},
		})
		assert.ErrorIs(t, err, shared.ErrConflict)
	})

	t.Run("list filters by period", func(t *testing.T) {
		page, err := svc.List(ctx, ledgerapp.ListLedgerFilter{Year: "1403", Floor: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)

		page, err = svc.List(ctx, ledgerapp.ListLedgerFilter{Year: "1402"})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, created.ID))
		_, err := svc.GetByID(ctx, created.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestUnitBillLedger_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	ctx := context.Background()

	units := persistence.NewGormUnitRepository(testDB.DB)
	unit := leasing.Unit{
		BaseEntity:    shared.NewBaseEntity(),
		UnitNumber:    "B-12",
		Status:        leasing.UnitStatusOccupied,
		CustomerName:  "Reza",
		ServiceCharge: decimal.NewFromInt(80),
		Readings: leasing.MeterReadings{
			CurrentWater:       decimal.NewFromInt(10),
			CurrentElectricity: decimal.NewFromInt(300),
		},
	}
	require.NoError(t, units.Save(ctx, &unit))
	vacant := leasing.Unit{BaseEntity: shared.NewBaseEntity(), UnitNumber: "B-13", Status: leasing.UnitStatusVacant}
	require.NoError(t, units.Save(ctx, &vacant))

	store, err := cache.NewIdempotencyStore(ctx, config.LedgerConfig{IdempotencyBackend: "memory"}, config.RedisConfig{}, true, zap.NewNop())
	require.NoError(t, err)
	bus := event.NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(event.NewIdempotentHandler(
		ledgerapp.NewMeterReadingSyncHandler(units, zap.NewNop()),
		store,
		shared.DefaultIdempotencyConfig(),
		zap.NewNop(),
	))

	svc := ledgerapp.NewService(ledger.UnitBillConfig(), ledgerapp.Dependencies{
		Repo:   persistence.NewGormLedgerRepository(testDB.DB),
		Source: ledger.UnitSource(units),
		Events: bus,
		Logger: zap.NewNop(),
	}, ledgerapp.Options{})

	input := ledgerapp.CreateLedgerInput{PeriodInput: ledgerapp.PeriodInput{Month: raw("7"), Year: raw("1403")}}
	created, err := svc.Create(ctx, input)
	require.NoError(t, err)
	require.Len(t, created.LineItems, 1)
	require.Contains(t, created.LineItems, unit.ID.String())

	t.Run("one ledger per period", func(t *testing.T) {
		_, err := svc.Create(ctx, input)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("meter readings flow back to the unit", func(t *testing.T) {
		_, err := svc.ApplyPatch(ctx, created.ID, ledgerapp.PatchLedgerInput{
			UnitDetailsList: ledger.LineItemPatch{unit.ID.String(): {
				"current_waterMeter":  raw(`"14"`),
				ledger.ExtWaterCharge: raw("20"),
				ledger.FieldPaid:      raw("50"),
			}},
		})
		require.NoError(t, err)

		stored, err := units.FindByID(ctx, unit.ID)
		require.NoError(t, err)
		assert.True(t, stored.Readings.CurrentWater.Equal(decimal.NewFromInt(14)))
		assert.True(t, stored.Readings.PreviousWater.Equal(decimal.NewFromInt(10)))
		assert.True(t, stored.Readings.CurrentElectricity.Equal(decimal.NewFromInt(300)))
	})

	t.Run("approval locks line items", func(t *testing.T) {
		approved := true
		_, err := svc.ApplyPatch(ctx, created.ID, ledgerapp.PatchLedgerInput{IsApproved: &approved})
		require.NoError(t, err)

		locked := ledgerapp.NewService(ledger.UnitBillConfig(), ledgerapp.Dependencies{
			Repo:   persistence.NewGormLedgerRepository(testDB.DB),
			Source: ledger.UnitSource(units),
			Logger: zap.NewNop(),
		}, ledgerapp.Options{LockOnApproval: true})
		_, err = locked.ApplyPatch(ctx, created.ID, ledgerapp.PatchLedgerInput{
			LineItems: ledger.LineItemPatch{unit.ID.String(): {ledger.FieldPaid: raw("80")}},
		})
		assert.ErrorIs(t, err, shared.ErrLedgerApproved)
	})
}
