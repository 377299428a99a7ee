package ledger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/propledger/backend/internal/domain/leasing"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeAgreements struct {
	agreements []leasing.Agreement
	err        error
	calls      int
}

func (f *fakeAgreements) FindActiveOnFloor(_ context.Context, floor int) ([]leasing.Agreement, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []leasing.Agreement
	for _, a := range f.agreements {
		if a.Floor == floor && a.IsActive() {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeUnits struct {
	units []leasing.Unit
	err   error
}

func (f *fakeUnits) FindOccupied(_ context.Context) ([]leasing.Unit, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []leasing.Unit
	for _, u := range f.units {
		if u.IsOccupied() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUnits) FindByID(_ context.Context, id uuid.UUID) (*leasing.Unit, error) {
	for i := range f.units {
		if f.units[i].ID == id {
			return &f.units[i], nil
		}
	}
	return nil, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func raw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func agreement(customer uuid.UUID, floor int, rent, service string, shops ...string) leasing.Agreement {
	return leasing.Agreement{
		BaseEntity:   shared.BaseEntity{ID: uuid.New()},
		CustomerID:   &customer,
		CustomerName: "customer " + customer.String()[:4],
		Status:       leasing.AgreementStatusActive,
		Floor:        floor,
		Shops:        shops,
		Rent:         dec(rent),
		Service:      dec(service),
	}
}

func assertInvariants(t *testing.T, l *PeriodLedger) {
	t.Helper()
	sum := decimal.Zero
	for id, item := range l.LineItems {
		require.True(t, item.Remainder.Equal(item.Due.Sub(item.Paid)), "remainder invariant broken for %s", id)
		sum = sum.Add(item.Due)
	}
	require.True(t, l.Total.Equal(sum), "total %s != sum of due %s", l.Total, sum)
}
