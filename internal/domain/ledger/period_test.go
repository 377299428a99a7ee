package ledger

import (
	"errors"
	"testing"

	"github.com/propledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPeriodKey(t *testing.T) {
	tests := []struct {
		name  string
		cfg   KindConfig
		floor int
		month int
		year  string
		field string
	}{
		{"valid rent", RentConfig(), 2, 5, "1403", ""},
		{"rent without floor", RentConfig(), 0, 5, "1403", ""},
		{"non numeric year", RentConfig(), 2, 5, "abcd", "year"},
		{"short year", RentConfig(), 2, 5, "403", "year"},
		{"signed year", RentConfig(), 2, 5, "-403", "year"},
		{"month zero", RentConfig(), 2, 0, "1403", "month"},
		{"month 13", ServicesConfig(), 2, 13, "1403", "month"},
		{"floor out of range", RentConfig(), 7, 5, "1403", "floor"},
		{"unit bill ignores floor", UnitBillConfig(), 9, 5, "1403", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := NewPeriodKey(tt.cfg, tt.floor, tt.month, tt.year)
			if tt.field == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.month, key.Month)
				return
			}
			var de *shared.DomainError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, shared.CodeInvalidPeriodKey, de.Code)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}

func TestPeriodKey_IsCompleteAndString(t *testing.T) {
	assert.False(t, PeriodKey{Month: 5, Year: "1403"}.IsComplete(RentConfig()))
	assert.True(t, PeriodKey{Month: 5, Year: "1403"}.IsComplete(UnitBillConfig()))
	assert.Equal(t, "1403-05/floor-2", PeriodKey{Floor: 2, Month: 5, Year: "1403"}.String())
	assert.Equal(t, "1403-12", PeriodKey{Month: 12, Year: "1403"}.String())
}
