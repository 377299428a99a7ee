package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/propledger/backend/internal/domain/ledger"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRentLedger(t *testing.T, floor, month int, year string, dues ...string) *ledger.PeriodLedger {
	t.Helper()
	items := ledger.LineItems{}
	for _, due := range dues {
		item := ledger.NewLineItem(decimal.RequireFromString(due), nil)
		item.SetExt(ledger.ExtShop, []string{"S-" + due})
		items[uuid.NewString()] = item
	}
	key := ledger.PeriodKey{Floor: floor, Month: month, Year: year}
	l, err := ledger.NewPeriodLedger(ledger.RentConfig(), key, ledger.Snapshot{Items: items}, false)
	require.NoError(t, err)
	return l
}

func TestGormLedgerRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(newTestDatabase(t).DB)

	l := newRentLedger(t, 2, 5, "1403", "1500", "250.50")
	require.NoError(t, repo.Save(ctx, l))

	got, err := repo.FindByID(ctx, ledger.KindRent, l.ID)
	require.NoError(t, err)

	assert.Equal(t, l.ID, got.ID)
	assert.Equal(t, ledger.KindRent, got.Kind)
	assert.Equal(t, l.Period, got.Period)
	assert.Equal(t, 1, got.Version)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("1750.50")), "total %s", got.Total)
	require.Len(t, got.LineItems, 2)
	for id, item := range l.LineItems {
		stored, ok := got.LineItems[id]
		require.True(t, ok, "line item %s missing", id)
		assert.True(t, stored.Due.Equal(item.Due))
		assert.True(t, stored.Remainder.Equal(item.Remainder))
		assert.JSONEq(t, string(item.Ext(ledger.ExtShop)), string(stored.Ext(ledger.ExtShop)))
	}

	t.Run("other kind does not see it", func(t *testing.T) {
		_, err := repo.FindByID(ctx, ledger.KindServices, l.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, ledger.KindRent, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormLedgerRepository_FindAllOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(newTestDatabase(t).DB)

	seed := []*ledger.PeriodLedger{
		newRentLedger(t, 3, 1, "1402", "10"),
		newRentLedger(t, 1, 7, "1403", "10"),
		newRentLedger(t, 2, 7, "1403", "10"),
		newRentLedger(t, 1, 2, "1403", "10"),
	}
	for _, l := range seed {
		require.NoError(t, repo.Save(ctx, l))
	}
	services, err := ledger.NewPeriodLedger(ledger.ServicesConfig(), ledger.PeriodKey{Floor: 1, Month: 9, Year: "1403"}, ledger.Snapshot{}, false)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, services))

	all, err := repo.FindAll(ctx, ledger.Filter{Kind: ledger.KindRent})
	require.NoError(t, err)
	require.Len(t, all, 4)
	var order []string
	for _, l := range all {
		order = append(order, l.Period.String())
	}
	assert.Equal(t, []string{"1403-07/floor-1", "1403-07/floor-2", "1403-02/floor-1", "1402-01/floor-3"}, order)

	t.Run("year and floor filter", func(t *testing.T) {
		got, err := repo.FindAll(ctx, ledger.Filter{Kind: ledger.KindRent, Year: "1403", Floor: 1})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		count, err := repo.Count(ctx, ledger.Filter{Kind: ledger.KindRent, Year: "1403", Floor: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("month filter", func(t *testing.T) {
		got, err := repo.FindAll(ctx, ledger.Filter{Kind: ledger.KindRent, Month: 7})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("paging", func(t *testing.T) {
		page, err := repo.FindAll(ctx, ledger.Filter{Kind: ledger.KindRent, Page: 2, PageSize: 3})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "1402-01/floor-3", page[0].Period.String())

		count, err := repo.Count(ctx, ledger.Filter{Kind: ledger.KindRent, Page: 2, PageSize: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})
}

func TestGormLedgerRepository_ExistsForPeriod(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(newTestDatabase(t).DB)

	require.NoError(t, repo.Save(ctx, newRentLedger(t, 2, 5, "1403", "100")))

	exists, err := repo.ExistsForPeriod(ctx, ledger.KindRent, ledger.PeriodKey{Floor: 2, Month: 5, Year: "1403"})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsForPeriod(ctx, ledger.KindRent, ledger.PeriodKey{Floor: 3, Month: 5, Year: "1403"})
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsForPeriod(ctx, ledger.KindServices, ledger.PeriodKey{Floor: 2, Month: 5, Year: "1403"})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGormLedgerRepository_DuplicateUnitBill(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(newTestDatabase(t).DB)

	key := ledger.PeriodKey{Month: 4, Year: "1403"}
	first, err := ledger.NewPeriodLedger(ledger.UnitBillConfig(), key, ledger.Snapshot{}, false)
	require.NoError(t, err)
	second, err := ledger.NewPeriodLedger(ledger.UnitBillConfig(), key, ledger.Snapshot{}, false)
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, first))
	err = repo.Save(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	// rent ledgers of the same month are not constrained
	require.NoError(t, repo.Save(ctx, newRentLedger(t, 1, 4, "1403", "1")))
	require.NoError(t, repo.Save(ctx, newRentLedger(t, 1, 4, "1403", "1")))
}

func TestGormLedgerRepository_SaveWithLock(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(newTestDatabase(t).DB)
	cfg := ledger.RentConfig()

	l := newRentLedger(t, 1, 3, "1403", "1000")
	l.Approved = true
	require.NoError(t, repo.Save(ctx, l))

	var id string
	for k := range l.LineItems {
		id = k
	}
	approved := false
	outcome, err := l.ApplyPatch(cfg, ledger.Patch{
		Approved:  &approved,
		LineItems: ledger.LineItemPatch{id: {"taken": []byte(`"400"`)}},
	}, ledger.PatchOptions{})
	require.NoError(t, err)
	require.True(t, outcome.Changed)
	require.Equal(t, 2, l.Version)

	require.NoError(t, repo.SaveWithLock(ctx, l))

	got, err := repo.FindByID(ctx, ledger.KindRent, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.False(t, got.Approved, "false must be written, not skipped as a zero value")
	assert.True(t, got.LineItems[id].Paid.Equal(decimal.NewFromInt(400)))
	assert.True(t, got.LineItems[id].Remainder.Equal(decimal.NewFromInt(600)))

	t.Run("stale version conflicts", func(t *testing.T) {
		stale := *got
		stale.Version = 2 // expects stored version 1
		err := repo.SaveWithLock(ctx, &stale)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

func TestGormLedgerRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(newTestDatabase(t).DB)

	l := newRentLedger(t, 1, 1, "1403", "5")
	require.NoError(t, repo.Save(ctx, l))

	assert.ErrorIs(t, repo.Delete(ctx, ledger.KindUnitBill, l.ID), shared.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, ledger.KindRent, l.ID))
	assert.ErrorIs(t, repo.Delete(ctx, ledger.KindRent, l.ID), shared.ErrNotFound)

	_, err := repo.FindByID(ctx, ledger.KindRent, l.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
