package valueobject

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for money amounts, in
// memory and in storage alike.
const MoneyScale = 2

// RoundMoney rounds d half away from zero to MoneyScale digits
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// CoerceDecimal converts value to a decimal, returning def for empty or
// malformed input. It never fails.
func CoerceDecimal(value any, def decimal.Decimal) decimal.Decimal {
	d, _ := ParseDecimal(value, def)
	return d
}

// ParseDecimal is CoerceDecimal that also reports whether a non-empty value
// had to be replaced by def because it could not be parsed.
func ParseDecimal(value any, def decimal.Decimal) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return def, false
	case decimal.Decimal:
		return v, false
	case *decimal.Decimal:
		if v == nil {
			return def, false
		}
		return *v, false
	case string:
		return parseDecimalText(v, def)
	case json.Number:
		return parseDecimalText(string(v), def)
	case json.RawMessage:
		return parseRawDecimal(v, def)
	case []byte:
		return parseRawDecimal(v, def)
	case int:
		return decimal.NewFromInt(int64(v)), false
	case int8:
		return decimal.NewFromInt(int64(v)), false
	case int16:
		return decimal.NewFromInt(int64(v)), false
	case int32:
		return decimal.NewFromInt(int64(v)), false
	case int64:
		return decimal.NewFromInt(v), false
	case uint:
		return decimal.NewFromUint64(uint64(v)), false
	case uint8:
		return decimal.NewFromUint64(uint64(v)), false
	case uint16:
		return decimal.NewFromUint64(uint64(v)), false
	case uint32:
		return decimal.NewFromUint64(uint64(v)), false
	case uint64:
		return decimal.NewFromUint64(v), false
	case float32:
		return parseFloat(float64(v), def)
	case float64:
		return parseFloat(v, def)
	default:
		return def, true
	}
}

// FormatDecimal renders d as fixed-point text for embedding in JSON documents
func FormatDecimal(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// DecimalText returns the JSON string literal holding FormatDecimal(d)
func DecimalText(d decimal.Decimal) json.RawMessage {
	b, _ := json.Marshal(FormatDecimal(d))
	return b
}

func parseDecimalText(s string, def decimal.Decimal) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return def, true
	}
	return d, false
}

func parseRawDecimal(raw []byte, def decimal.Decimal) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return def, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return def, true
		}
		return parseDecimalText(s, def)
	}
	return parseDecimalText(string(raw), def)
}

func parseFloat(f float64, def decimal.Decimal) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def, true
	}
	return decimal.NewFromFloat(f), false
}
